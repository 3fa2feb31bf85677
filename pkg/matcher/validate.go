package matcher

import "netstub/pkg/domain"

// Validate 注册前的纯结构校验，不产生任何副作用
func Validate(s *Spec) error {
	if s.Empty() {
		return &domain.MalformedMatcherError{Reason: "matcher is empty"}
	}
	if s.Method != nil && s.Method.IsZero() {
		return &domain.MalformedMatcherError{Field: "method", Reason: "must be a string or a pattern"}
	}
	if s.URL != nil && s.URL.IsZero() {
		return &domain.MalformedMatcherError{Field: "url", Reason: "must be a string or a pattern"}
	}
	for name, v := range s.Headers {
		if v.IsZero() {
			return &domain.MalformedMatcherError{Field: "headers." + name, Reason: "must be a string or a pattern"}
		}
	}
	for name, v := range s.Query {
		if v.IsZero() {
			return &domain.MalformedMatcherError{Field: "query." + name, Reason: "must be a string or a pattern"}
		}
	}
	for _, p := range s.Ports {
		if p <= 0 || p > 65535 {
			return &domain.MalformedMatcherError{Field: "port", Reason: "must be a valid port number"}
		}
	}
	return nil
}
