package bridge

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netstub/pkg/matcher"
)

func TestPipeCarriesFramesBothWays(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Send(Frame{Type: FrameRouteAdded, Handler: "h-1"}))
	f, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, FrameRouteAdded, f.Type)

	require.NoError(t, b.Send(Frame{Type: FrameRouteAck, Handler: "h-1"}))
	f, err = a.Recv()
	require.NoError(t, err)
	assert.Equal(t, FrameRouteAck, f.Type)
}

func TestPipeCloseUnblocksBothEnds(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())

	_, err := b.Recv()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Send(Frame{}), ErrClosed)
}

type duplex struct {
	io.Reader
	io.Writer
}

func TestStreamConnRoundTrip(t *testing.T) {
	pr, pw := io.Pipe()
	sender := NewStreamConn(duplex{Reader: nil, Writer: pw})
	receiver := NewStreamConn(duplex{Reader: pr, Writer: nil})

	spec, err := matcher.Parse(map[string]any{"method": "GET", "url": "*/api/*"})
	require.NoError(t, err)

	go func() {
		_ = sender.Send(Frame{Type: FrameRouteAdded, Handler: "h-1", Matcher: matcher.Annotate(spec), HandlerKind: "static"})
	}()

	f, err := receiver.Recv()
	require.NoError(t, err)
	assert.Equal(t, FrameRouteAdded, f.Type)
	require.NotNil(t, f.Matcher)
	assert.Equal(t, "*/api/*", f.Matcher.URL.Value)
	assert.Equal(t, matcher.KindExact, f.Matcher.URL.Kind)
}
