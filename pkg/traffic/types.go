package traffic

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Header 封装通用的头部操作（键一律小写）
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Request 中立的请求快照，随 request:matched 帧跨进程传输
type Request struct {
	Correlation  string            `json:"correlationId"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      Header            `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	ResourceType string            `json:"resourceType,omitempty"`
	Query        map[string]string `json:"query,omitempty"`
	HTTPS        bool              `json:"https,omitempty"`
	Port         int               `json:"port,omitempty"`
	WebSocket    bool              `json:"webSocket,omitempty"`
}

// Response 中立的响应模型
type Response struct {
	StatusCode int    `json:"statusCode"`
	Headers    Header `json:"headers,omitempty"`
	Body       []byte `json:"body,omitempty"`
}

// NewRequest 创建初始化请求对象
func NewRequest() *Request {
	return &Request{
		Headers: make(Header),
		Query:   make(map[string]string),
	}
}

// NewResponse 创建初始化响应对象
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    make(Header),
	}
}

// ParseURL 从 URL 预解析 Query、协议与端口
func (r *Request) ParseURL() {
	u, err := url.Parse(r.URL)
	if err != nil {
		return
	}
	for key, vals := range u.Query() {
		if len(vals) > 0 {
			r.Query[strings.ToLower(key)] = vals[0]
		}
	}
	switch u.Scheme {
	case "https", "wss":
		r.HTTPS = true
	}
	switch u.Scheme {
	case "ws", "wss":
		r.WebSocket = true
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			r.Port = n
		}
	} else if r.HTTPS {
		r.Port = 443
	} else {
		r.Port = 80
	}
}
