package matcher

import (
	"regexp"

	"netstub/pkg/domain"
)

// 可识别的匹配器字段集合
var specFields = map[string]struct{}{
	"method":    {},
	"url":       {},
	"headers":   {},
	"query":     {},
	"https":     {},
	"port":      {},
	"webSocket": {},
}

// Parse 接受注册入口的宽松形态：URL 字符串、映射或已构造的 *Spec
func Parse(in any) (*Spec, error) {
	switch v := in.(type) {
	case *Spec:
		return v, Validate(v)
	case Spec:
		return &v, Validate(&v)
	case string:
		val := Exact(v)
		return &Spec{URL: &val}, nil
	case *regexp.Regexp:
		val := Regex(v)
		return &Spec{URL: &val}, nil
	case map[string]any:
		return parseMap(v)
	}
	return nil, &domain.MalformedMatcherError{Reason: "matcher must be a url, a pattern or a mapping"}
}

// ParseShorthand 解析 (method, url) 简写
func ParseShorthand(method, url string) *Spec {
	m := Exact(method)
	u := Exact(url)
	return &Spec{Method: &m, URL: &u}
}

func parseMap(m map[string]any) (*Spec, error) {
	if len(m) == 0 {
		return nil, &domain.MalformedMatcherError{Reason: "matcher is empty"}
	}
	spec := &Spec{}
	for k, raw := range m {
		if _, ok := specFields[k]; !ok {
			return nil, &domain.MalformedMatcherError{Field: k, Reason: "is not a recognized matcher field"}
		}
		switch k {
		case "method", "url":
			v, err := parseValue(k, raw)
			if err != nil {
				return nil, err
			}
			if k == "method" {
				spec.Method = &v
			} else {
				spec.URL = &v
			}
		case "headers", "query":
			vals, err := parseValueMap(k, raw)
			if err != nil {
				return nil, err
			}
			if k == "headers" {
				spec.Headers = vals
			} else {
				spec.Query = vals
			}
		case "https", "webSocket":
			b, ok := raw.(bool)
			if !ok {
				return nil, &domain.MalformedMatcherError{Field: k, Reason: "must be a boolean"}
			}
			if k == "https" {
				spec.HTTPS = &b
			} else {
				spec.WebSocket = &b
			}
		case "port":
			ports, err := parsePorts(raw)
			if err != nil {
				return nil, err
			}
			spec.Ports = ports
		}
	}
	return spec, Validate(spec)
}

// parseValue 解析字符串/正则二选一的字段值
func parseValue(field string, raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return Exact(v), nil
	case *regexp.Regexp:
		return Regex(v), nil
	case Value:
		return v, nil
	}
	return Value{}, &domain.MalformedMatcherError{Field: field, Reason: "must be a string or a pattern"}
}

func parseValueMap(field string, raw any) (map[string]Value, error) {
	out := make(map[string]Value)
	switch vm := raw.(type) {
	case map[string]any:
		for name, rv := range vm {
			v, err := parseValue(field+"."+name, rv)
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
	case map[string]string:
		for name, rv := range vm {
			out[name] = Exact(rv)
		}
	case map[string]Value:
		for name, rv := range vm {
			out[name] = rv
		}
	default:
		return nil, &domain.MalformedMatcherError{Field: field, Reason: "must be a mapping of field name to string or pattern"}
	}
	return out, nil
}

func parsePorts(raw any) ([]int, error) {
	if n, ok := asInt(raw); ok {
		return []int{n}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		if ints, ok := raw.([]int); ok {
			return ints, nil
		}
		return nil, &domain.MalformedMatcherError{Field: "port", Reason: "must be a number or a list of numbers"}
	}
	ports := make([]int, 0, len(list))
	for _, el := range list {
		n, ok := asInt(el)
		if !ok {
			return nil, &domain.MalformedMatcherError{Field: "port", Reason: "must be a number or a list of numbers"}
		}
		ports = append(ports, n)
	}
	return ports, nil
}

// asInt 兼容 JSON/YAML 解码出的数值形态
func asInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
