package matcher

import (
	"strings"

	"netstub/pkg/traffic"
)

// MatchRequest 对一条活动请求求值，后端在每次拦截时调用
func (s *Spec) MatchRequest(req *traffic.Request) bool {
	if s.Method != nil && !matchMethod(*s.Method, req.Method) {
		return false
	}
	if s.URL != nil && !s.URL.Match(req.URL) {
		return false
	}
	for name, v := range s.Headers {
		got, ok := req.Headers[strings.ToLower(name)]
		if !ok || !v.Match(got) {
			return false
		}
	}
	for name, v := range s.Query {
		got, ok := req.Query[strings.ToLower(name)]
		if !ok || !v.Match(got) {
			return false
		}
	}
	if s.HTTPS != nil && *s.HTTPS != req.HTTPS {
		return false
	}
	if len(s.Ports) > 0 && !containsPort(s.Ports, req.Port) {
		return false
	}
	if s.WebSocket != nil && *s.WebSocket != req.WebSocket {
		return false
	}
	return true
}

// matchMethod 字面方法名大小写不敏感，正则按原样匹配
func matchMethod(v Value, method string) bool {
	if v.IsPattern() {
		return v.Match(method)
	}
	return strings.EqualFold(v.String(), method)
}

func containsPort(ports []int, p int) bool {
	for _, candidate := range ports {
		if candidate == p {
			return true
		}
	}
	return false
}
