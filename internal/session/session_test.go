package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netstub/internal/backend"
	"netstub/pkg/domain"
	"netstub/pkg/stub"
	"netstub/pkg/traffic"
)

func startSession(t *testing.T) *Session {
	t.Helper()
	s := New("s-test", domain.SessionConfig{}, nil)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// probe 记录终结动作的活动请求替身，绕过 CDP 直接投喂后端引擎
type probe struct {
	req       *traffic.Request
	continued int
	fulfilled []*stub.StaticResponse
	destroyed int
}

func newProbe(method, url string) *probe {
	req := traffic.NewRequest()
	req.Method = method
	req.URL = url
	req.ParseURL()
	return &probe{req: req}
}

func (p *probe) live() *backend.LiveRequest {
	return &backend.LiveRequest{
		Req:      p.req,
		Continue: func(context.Context) error { p.continued++; return nil },
		Fulfill: func(_ context.Context, res *stub.StaticResponse) error {
			p.fulfilled = append(p.fulfilled, res)
			return nil
		},
		Destroy: func(context.Context) error { p.destroyed++; return nil },
	}
}

func TestRegisterStaticRoute(t *testing.T) {
	s := startSession(t)

	id, err := s.RegisterAs("users", "*/api/users", map[string]any{"statusCode": 404, "body": "gone"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	n, ok := s.HitsByAlias("users")
	require.True(t, ok)
	assert.Zero(t, n)

	stats := s.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "users", stats[0].Alias)
}

func TestRegisterMalformedMatcherLeavesNothing(t *testing.T) {
	s := startSession(t)

	_, err := s.Register(map[string]any{"port": "abc"}, nil)
	var me *domain.MalformedMatcherError
	require.True(t, errors.As(err, &me))
	assert.Empty(t, s.Stats())
}

func TestRegisterInvalidHandlerLeavesNothing(t *testing.T) {
	s := startSession(t)

	_, err := s.Register("*/api/users", 12.5)
	var ie *domain.InvalidHandlerError
	require.True(t, errors.As(err, &ie))
	assert.Empty(t, s.Stats())
}

func TestRegisterEmitsRegisteredEvent(t *testing.T) {
	s := startSession(t)

	_, err := s.RegisterAs("login", map[string]any{"method": "POST", "url": "*/api/login"}, "ok")
	require.NoError(t, err)

	select {
	case ev := <-s.Events():
		assert.Equal(t, domain.EventRouteRegistered, ev.Type)
		assert.Equal(t, "login", ev.Alias)
		assert.Equal(t, domain.SessionID("s-test"), ev.Session)
		assert.NotZero(t, ev.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no registration event")
	}
}

func TestEndToEndStaticStub(t *testing.T) {
	s := startSession(t)

	id, err := s.Register("*/api/users", "stubbed")
	require.NoError(t, err)

	p := newProbe("GET", "https://example.com/api/users")
	s.engine.Offer(context.Background(), p.live())

	require.Eventually(t, func() bool {
		n, ok := s.Hits(id)
		return ok && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, p.fulfilled, 1)
	assert.Equal(t, "stubbed", p.fulfilled[0].BodyString())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type != domain.EventRequestResolved {
				continue
			}
			assert.Equal(t, id, ev.Handler)
			assert.Equal(t, domain.OutcomeResponded, ev.Outcome)
			return
		case <-deadline:
			t.Fatal("no resolved event")
		}
	}
}

func TestEndToEndDynamicInterceptor(t *testing.T) {
	s := startSession(t)

	_, err := s.Register(map[string]any{"method": "GET", "url": "*/api/profile"}, stub.Interceptor(func(ic *stub.Intercepted) {
		body := `{"name":"stub"}`
		_ = ic.Reply(&stub.StaticResponse{Body: &body, StatusCode: 200})
	}))
	require.NoError(t, err)

	p := newProbe("GET", "https://example.com/api/profile")
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.engine.Offer(context.Background(), p.live())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request not resolved by interceptor")
	}
	require.Len(t, p.fulfilled, 1)
	assert.JSONEq(t, `{"name":"stub"}`, p.fulfilled[0].BodyString())
}

func TestCloseDiscardsPending(t *testing.T) {
	s := New("s-close", domain.SessionConfig{}, nil)
	require.NoError(t, s.Start(context.Background()))

	block := make(chan struct{})
	id, err := s.Register("*/api/slow", stub.Interceptor(func(ic *stub.Intercepted) {
		<-block
	}))
	require.NoError(t, err)

	p := newProbe("GET", "https://example.com/api/slow")
	go s.engine.Offer(context.Background(), p.live())

	require.Eventually(t, func() bool {
		for _, st := range s.Stats() {
			if st.Handler == id && st.Pending == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Empty(t, s.Stats())
	// 在途请求不会收到任何终结动作
	assert.Zero(t, p.continued)
	assert.Empty(t, p.fulfilled)
	close(block)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New("s-twice", domain.SessionConfig{}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
