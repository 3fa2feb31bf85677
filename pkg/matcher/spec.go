package matcher

import (
	"regexp"
	"strings"
)

// Value 字符串/正则两种形态的匹配值，字符串按 glob 语义匹配
type Value struct {
	exact string
	re    *regexp.Regexp
}

// Exact 构造字面/glob 匹配值
func Exact(s string) Value { return Value{exact: s} }

// Regex 构造正则匹配值
func Regex(re *regexp.Regexp) Value { return Value{re: re} }

// Pattern 从正则源文本构造匹配值
func Pattern(src string) (Value, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return Value{}, err
	}
	return Value{re: re}, nil
}

// IsPattern 判断是否为正则形态
func (v Value) IsPattern() bool { return v.re != nil }

// IsZero 判断是否未设置
func (v Value) IsZero() bool { return v.re == nil && v.exact == "" }

// String 返回字符串形态：字面值或正则源文本
func (v Value) String() string {
	if v.re != nil {
		return v.re.String()
	}
	return v.exact
}

// Match 对给定字符串求值
func (v Value) Match(s string) bool {
	if v.re != nil {
		return v.re.MatchString(s)
	}
	return glob(s, v.exact)
}

// glob 简化通配：支持前缀/后缀单星号
func glob(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(s, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(s, strings.TrimSuffix(pattern, "*")) {
		return true
	}
	return s == pattern
}

// Spec 用户侧匹配器，描述一条路由适用于哪些出站请求
type Spec struct {
	Method    *Value
	URL       *Value
	Headers   map[string]Value
	Query     map[string]Value
	HTTPS     *bool
	Ports     []int
	WebSocket *bool
}

// Empty 判断匹配器是否未设置任何字段
func (s *Spec) Empty() bool {
	return s == nil ||
		(s.Method == nil && s.URL == nil &&
			len(s.Headers) == 0 && len(s.Query) == 0 &&
			s.HTTPS == nil && len(s.Ports) == 0 && s.WebSocket == nil)
}
