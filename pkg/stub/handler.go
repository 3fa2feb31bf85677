package stub

import (
	"encoding/json"

	"netstub/pkg/domain"
)

// Kind 处理器分类结果，下游只匹配该标签，不再复查原始输入
type Kind string

const (
	KindPassthrough Kind = "passthrough"
	KindStatic      Kind = "static"
	KindDynamic     Kind = "dynamic"
)

// Interceptor 动态拦截器：对每个匹配请求由桥调用，可任意挂起
type Interceptor func(*Intercepted)

// Handler 分类后的处理器
type Handler struct {
	Kind        Kind
	Static      *StaticResponse
	Interceptor Interceptor
}

// 静态响应的可识别字段名（json tag）
var staticResponseFields = map[string]struct{}{
	"body":          {},
	"fixturePath":   {},
	"statusCode":    {},
	"headers":       {},
	"destroySocket": {},
	"delayMs":       {},
	"throttleKbps":  {},
}

// Classify 判定用户传入处理器的形态并归一化其静态响应
func Classify(in any) (*Handler, error) {
	switch v := in.(type) {
	case nil:
		return &Handler{Kind: KindPassthrough}, nil
	case Interceptor:
		return &Handler{Kind: KindDynamic, Interceptor: v}, nil
	case func(*Intercepted):
		return &Handler{Kind: KindDynamic, Interceptor: v}, nil
	case string:
		body := v
		return newStatic(&StaticResponse{Body: &body})
	case StaticResponse:
		return newStatic(&v)
	case *StaticResponse:
		clone := *v
		return newStatic(&clone)
	case map[string]any:
		if hasStaticResponseField(v) {
			res, err := decodeStaticResponse(v)
			if err != nil {
				return nil, err
			}
			return newStatic(res)
		}
		return wrapJSONBody(v)
	}
	return nil, &domain.InvalidHandlerError{Value: in}
}

func newStatic(res *StaticResponse) (*Handler, error) {
	if err := res.Normalize(); err != nil {
		return nil, err
	}
	return &Handler{Kind: KindStatic, Static: res}, nil
}

func hasStaticResponseField(m map[string]any) bool {
	for k := range m {
		if _, ok := staticResponseFields[k]; ok {
			return true
		}
	}
	return false
}

// decodeStaticResponse 经 JSON 往返把映射落到结构体，形态不符即报非法处理器
func decodeStaticResponse(m map[string]any) (*StaticResponse, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, &domain.InvalidHandlerError{Value: m}
	}
	var res StaticResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &domain.InvalidHandlerError{Value: m}
	}
	return &res, nil
}

// wrapJSONBody 无可识别字段的映射整体作为 JSON body 存根
func wrapJSONBody(m map[string]any) (*Handler, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, &domain.InvalidHandlerError{Value: m}
	}
	body := string(raw)
	res := &StaticResponse{
		Body:    &body,
		Headers: map[string]string{"content-type": "application/json"},
	}
	return newStatic(res)
}
