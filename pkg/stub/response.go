package stub

import (
	"netstub/pkg/domain"
)

// 无 body 的存根响应使用的占位内容
const PlaceholderBody = "netstub: stubbed response"

// StaticResponse 预置响应，body 用指针区分“显式空串”与“未设置”
type StaticResponse struct {
	Body          *string           `json:"body,omitempty" yaml:"body,omitempty"`
	FixturePath   string            `json:"fixturePath,omitempty" yaml:"fixturePath,omitempty"`
	StatusCode    int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	DestroySocket bool              `json:"destroySocket,omitempty" yaml:"destroySocket,omitempty"`
	DelayMS       int               `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	ThrottleKbps  float64           `json:"throttleKbps,omitempty" yaml:"throttleKbps,omitempty"`
}

// BodyString 返回 body 内容，未设置时为空串
func (r *StaticResponse) BodyString() string {
	if r.Body == nil {
		return ""
	}
	return *r.Body
}

// Normalize 填充默认值并拒绝互斥字段，产出可直接传输的形态
func (r *StaticResponse) Normalize() error {
	if r.DestroySocket {
		var conflicts []string
		if r.Body != nil {
			conflicts = append(conflicts, "body")
		}
		if r.StatusCode != 0 {
			conflicts = append(conflicts, "statusCode")
		}
		if len(conflicts) > 0 {
			return &domain.ConflictingResponseFieldsError{Fields: conflicts}
		}
	} else {
		if r.StatusCode == 0 {
			r.StatusCode = 200
		}
		if r.Body == nil && r.FixturePath == "" {
			body := PlaceholderBody
			r.Body = &body
		}
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	return nil
}
