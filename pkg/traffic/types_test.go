package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCaseInsensitive(t *testing.T) {
	h := make(Header)
	h.Set("Content-Type", "application/json")
	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))

	h.Del("Content-Type")
	assert.Empty(t, h.Get("content-type"))

	var nilHeader Header
	assert.Empty(t, nilHeader.Get("any"))
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		https     bool
		port      int
		webSocket bool
	}{
		{"plain_http", "http://example.com/a", false, 80, false},
		{"https_default_port", "https://example.com/a", true, 443, false},
		{"explicit_port", "https://example.com:8443/a", true, 8443, false},
		{"websocket", "ws://example.com/feed", false, 80, true},
		{"secure_websocket", "wss://example.com/feed", true, 443, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRequest()
			r.URL = c.url
			r.ParseURL()
			assert.Equal(t, c.https, r.HTTPS)
			assert.Equal(t, c.port, r.Port)
			assert.Equal(t, c.webSocket, r.WebSocket)
		})
	}
}

func TestParseURLQueryLowercasesKeys(t *testing.T) {
	r := NewRequest()
	r.URL = "https://example.com/search?Page=2&q=go"
	r.ParseURL()
	assert.Equal(t, "2", r.Query["page"])
	assert.Equal(t, "go", r.Query["q"])
}

func TestRequestJSONBodyHelpers(t *testing.T) {
	r := NewRequest()
	r.Body = []byte(`{"user":{"id":7,"name":"ann"}}`)

	assert.Equal(t, int64(7), r.JSONGet("user.id").Int())
	require.NoError(t, r.JSONSet("user.name", "bob"))
	assert.Equal(t, "bob", r.JSONGet("user.name").String())
}

func TestResponseJSONBodyHelpers(t *testing.T) {
	res := NewResponse()
	res.Body = []byte(`{"items":[1,2,3]}`)

	assert.Equal(t, int64(3), res.JSONGet("items.#").Int())
	require.NoError(t, res.JSONSet("total", 3))
	assert.Equal(t, int64(3), res.JSONGet("total").Int())
}
