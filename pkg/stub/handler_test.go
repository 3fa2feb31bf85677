package stub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netstub/pkg/domain"
)

func TestClassifyPassthrough(t *testing.T) {
	h, err := Classify(nil)
	require.NoError(t, err)
	assert.Equal(t, KindPassthrough, h.Kind)
	assert.Nil(t, h.Static)
	assert.Nil(t, h.Interceptor)
}

func TestClassifyStringBody(t *testing.T) {
	h, err := Classify("hello world")
	require.NoError(t, err)
	require.Equal(t, KindStatic, h.Kind)
	assert.Equal(t, "hello world", h.Static.BodyString())
	assert.Equal(t, 200, h.Static.StatusCode)
}

func TestClassifyInterceptor(t *testing.T) {
	h, err := Classify(func(*Intercepted) {})
	require.NoError(t, err)
	assert.Equal(t, KindDynamic, h.Kind)
	require.NotNil(t, h.Interceptor)
}

func TestClassifyResponseMap(t *testing.T) {
	h, err := Classify(map[string]any{"statusCode": 404, "body": "not here"})
	require.NoError(t, err)
	require.Equal(t, KindStatic, h.Kind)
	assert.Equal(t, 404, h.Static.StatusCode)
	assert.Equal(t, "not here", h.Static.BodyString())
}

func TestClassifyPlainMapBecomesJSONBody(t *testing.T) {
	h, err := Classify(map[string]any{"id": 1, "name": "foo"})
	require.NoError(t, err)
	require.Equal(t, KindStatic, h.Kind)
	assert.JSONEq(t, `{"id":1,"name":"foo"}`, h.Static.BodyString())
	assert.Equal(t, "application/json", h.Static.Headers["content-type"])
	assert.Equal(t, 200, h.Static.StatusCode)
}

func TestClassifyUnknownType(t *testing.T) {
	_, err := Classify(42)
	var ie *domain.InvalidHandlerError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Error(), "42")
}

func TestClassifyClonesPointerInput(t *testing.T) {
	in := &StaticResponse{}
	h, err := Classify(in)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderBody, h.Static.BodyString())
	// 归一化不回写调用方持有的对象
	assert.Nil(t, in.Body)
	assert.Zero(t, in.StatusCode)
}

func TestNormalizeDefaults(t *testing.T) {
	res := &StaticResponse{}
	require.NoError(t, res.Normalize())
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, PlaceholderBody, res.BodyString())
	assert.NotNil(t, res.Headers)
}

func TestNormalizeKeepsExplicitEmptyBody(t *testing.T) {
	empty := ""
	res := &StaticResponse{Body: &empty, StatusCode: 204}
	require.NoError(t, res.Normalize())
	assert.Equal(t, "", res.BodyString())
	require.NotNil(t, res.Body)
}

func TestNormalizeFixtureSkipsPlaceholder(t *testing.T) {
	res := &StaticResponse{FixturePath: "fixtures/users.json"}
	require.NoError(t, res.Normalize())
	assert.Nil(t, res.Body)
}

func TestNormalizeDestroySocketConflicts(t *testing.T) {
	body := "x"
	res := &StaticResponse{Body: &body, StatusCode: 500, DestroySocket: true}
	err := res.Normalize()
	var ce *domain.ConflictingResponseFieldsError
	require.True(t, errors.As(err, &ce))
	assert.ElementsMatch(t, []string{"body", "statusCode"}, ce.Fields)

	ok := &StaticResponse{DestroySocket: true, DelayMS: 100}
	require.NoError(t, ok.Normalize())
}

func TestInterceptedResolvesAtMostOnce(t *testing.T) {
	var replies, passes, destroys int
	ic := NewIntercepted(nil,
		func(*StaticResponse) error { replies++; return nil },
		func() error { passes++; return nil },
		func() error { destroys++; return nil },
	)
	assert.False(t, ic.Resolved())

	require.NoError(t, ic.Reply(&StaticResponse{}))
	assert.True(t, ic.Resolved())

	// 后续终结全部成为空操作
	require.NoError(t, ic.Continue())
	require.NoError(t, ic.Destroy())
	require.NoError(t, ic.Reply(&StaticResponse{}))

	assert.Equal(t, 1, replies)
	assert.Equal(t, 0, passes)
	assert.Equal(t, 0, destroys)
}

func TestInterceptedReplyValidatesFirst(t *testing.T) {
	ic := NewIntercepted(nil,
		func(*StaticResponse) error { return nil },
		func() error { return nil },
		func() error { return nil },
	)
	body := "x"
	err := ic.Reply(&StaticResponse{Body: &body, DestroySocket: true})
	var ce *domain.ConflictingResponseFieldsError
	require.True(t, errors.As(err, &ce))
	// 校验失败不算终结，仍可正常放行
	assert.False(t, ic.Resolved())
	require.NoError(t, ic.Continue())
	assert.True(t, ic.Resolved())
}
