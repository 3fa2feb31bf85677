package matcher

import (
	"regexp"

	"netstub/pkg/domain"
)

// 标注值的两种 kind
const (
	KindExact   = "exact"
	KindPattern = "pattern"
)

// AnnotatedValue 可传输的标注值：正则对象不过网，只传 kind+源文本
type AnnotatedValue struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Annotated 匹配器的可传输形态，接收侧经 Rehydrate 还原
type Annotated struct {
	Method    *AnnotatedValue           `json:"method,omitempty"`
	URL       *AnnotatedValue           `json:"url,omitempty"`
	Headers   map[string]AnnotatedValue `json:"headers,omitempty"`
	Query     map[string]AnnotatedValue `json:"query,omitempty"`
	HTTPS     *bool                     `json:"https,omitempty"`
	Ports     []int                     `json:"port,omitempty"`
	WebSocket *bool                     `json:"webSocket,omitempty"`
}

// Annotate 将匹配器编码为可传输形态，不做任何校验
func Annotate(s *Spec) *Annotated {
	a := &Annotated{
		HTTPS:     s.HTTPS,
		Ports:     s.Ports,
		WebSocket: s.WebSocket,
	}
	if s.Method != nil {
		a.Method = annotateValue(*s.Method)
	}
	if s.URL != nil {
		a.URL = annotateValue(*s.URL)
	}
	if len(s.Headers) > 0 {
		a.Headers = make(map[string]AnnotatedValue, len(s.Headers))
		for name, v := range s.Headers {
			a.Headers[name] = *annotateValue(v)
		}
	}
	if len(s.Query) > 0 {
		a.Query = make(map[string]AnnotatedValue, len(s.Query))
		for name, v := range s.Query {
			a.Query[name] = *annotateValue(v)
		}
	}
	return a
}

func annotateValue(v Value) *AnnotatedValue {
	if v.IsPattern() {
		return &AnnotatedValue{Kind: KindPattern, Value: v.String()}
	}
	return &AnnotatedValue{Kind: KindExact, Value: v.String()}
}

// Rehydrate 在接收侧还原匹配器，正则在本侧重新编译
func Rehydrate(a *Annotated) (*Spec, error) {
	s := &Spec{
		HTTPS:     a.HTTPS,
		Ports:     a.Ports,
		WebSocket: a.WebSocket,
	}
	var err error
	if a.Method != nil {
		if s.Method, err = rehydrateValue("method", a.Method); err != nil {
			return nil, err
		}
	}
	if a.URL != nil {
		if s.URL, err = rehydrateValue("url", a.URL); err != nil {
			return nil, err
		}
	}
	if len(a.Headers) > 0 {
		s.Headers = make(map[string]Value, len(a.Headers))
		for name, av := range a.Headers {
			v, err := rehydrateValue("headers."+name, &av)
			if err != nil {
				return nil, err
			}
			s.Headers[name] = *v
		}
	}
	if len(a.Query) > 0 {
		s.Query = make(map[string]Value, len(a.Query))
		for name, av := range a.Query {
			v, err := rehydrateValue("query."+name, &av)
			if err != nil {
				return nil, err
			}
			s.Query[name] = *v
		}
	}
	return s, nil
}

func rehydrateValue(field string, av *AnnotatedValue) (*Value, error) {
	switch av.Kind {
	case KindPattern:
		re, err := regexp.Compile(av.Value)
		if err != nil {
			return nil, &domain.MalformedMatcherError{Field: field, Reason: "carries an uncompilable pattern: " + err.Error()}
		}
		v := Regex(re)
		return &v, nil
	case KindExact:
		v := Exact(av.Value)
		return &v, nil
	}
	return nil, &domain.MalformedMatcherError{Field: field, Reason: "carries unknown kind " + av.Kind}
}
