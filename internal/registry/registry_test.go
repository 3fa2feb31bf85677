package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netstub/pkg/domain"
)

func newTestEntry(t *testing.T, r *Registry, alias string) *Entry {
	t.Helper()
	e, err := r.Prepare("*/api/users", "stubbed", alias)
	require.NoError(t, err)
	r.Insert(e)
	return e
}

func TestPrepareFailureLeavesNoEntry(t *testing.T) {
	r := New(nil)

	_, err := r.Prepare(map[string]any{}, nil, "")
	var me *domain.MalformedMatcherError
	require.True(t, errors.As(err, &me))

	_, err = r.Prepare("*/ok", 42, "")
	var ie *domain.InvalidHandlerError
	require.True(t, errors.As(err, &ie))

	assert.Empty(t, r.Stats())
}

func TestInsertLookupAlias(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "users")

	got, ok := r.Lookup(e.ID)
	require.True(t, ok)
	assert.Equal(t, e.ID, got.ID)

	id, ok := r.ByAlias("users")
	require.True(t, ok)
	assert.Equal(t, e.ID, id)

	_, ok = r.ByAlias("ghost")
	assert.False(t, ok)
}

func TestRemoveRollsBackAlias(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "users")

	require.True(t, r.Remove(e.ID))
	_, ok := r.Lookup(e.ID)
	assert.False(t, ok)
	_, ok = r.ByAlias("users")
	assert.False(t, ok)
	assert.False(t, r.Remove(e.ID))
}

func TestRecordHitAndResolve(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "")

	rc := &domain.RequestContext{Correlation: "c-1", URL: "https://a/api/users", Method: "GET"}
	r.RecordHit(e.ID, rc)
	r.RecordHit(e.ID, &domain.RequestContext{Correlation: "c-2"})

	n, ok := r.Hits(e.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	got, err := r.Resolve(e.ID, "c-1", domain.OutcomeResponded)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResponded, got.State)

	stats := r.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(2), stats[0].Hits)
	assert.Equal(t, 1, stats[0].Pending)
}

func TestRecordHitOnRemovedRouteIsBenign(t *testing.T) {
	r := New(nil)
	r.RecordHit(domain.HandlerID("gone"), &domain.RequestContext{Correlation: "c-1"})
	assert.Empty(t, r.Stats())
}

func TestResolveUnknownRequest(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "")

	_, err := r.Resolve(e.ID, "never-seen", domain.OutcomeResponded)
	var ue *domain.UnknownRequestError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, domain.CorrelationID("never-seen"), ue.Correlation)
}

func TestResolveTwiceReportsDoubleResolution(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "")
	r.RecordHit(e.ID, &domain.RequestContext{Correlation: "c-1"})

	_, err := r.Resolve(e.ID, "c-1", domain.OutcomeDestroyed)
	require.NoError(t, err)

	_, err = r.Resolve(e.ID, "c-1", domain.OutcomeResponded)
	var de *domain.DoubleResolutionError
	require.True(t, errors.As(err, &de))
	// 保留首次终结的状态
	assert.Equal(t, domain.StateDestroyed, de.Prior)
}

func TestSetState(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "")
	r.RecordHit(e.ID, &domain.RequestContext{Correlation: "c-1"})

	require.True(t, r.SetState(e.ID, "c-1", domain.StateAwaitingHandler))
	assert.False(t, r.SetState(e.ID, "c-2", domain.StateAwaitingHandler))
	assert.False(t, r.SetState("gone", "c-1", domain.StateAwaitingHandler))
}

func TestDiscardPendingAndClear(t *testing.T) {
	r := New(nil)
	e := newTestEntry(t, r, "")
	r.RecordHit(e.ID, &domain.RequestContext{Correlation: "c-1"})
	r.RecordHit(e.ID, &domain.RequestContext{Correlation: "c-2"})

	assert.Equal(t, 2, r.DiscardPending())
	assert.Equal(t, 0, r.DiscardPending())
	assert.Equal(t, 1, r.Clear())
	assert.Empty(t, r.Stats())
}

func TestNewHandlerIDUniqueUnderConcurrency(t *testing.T) {
	const n = 200
	var mu sync.Mutex
	seen := make(map[domain.HandlerID]struct{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewHandlerID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
