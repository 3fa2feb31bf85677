package matcher

import (
	"fmt"
	"sort"
	"strings"
)

// Display 匹配器的诊断展示形态，未设置字段以通配符标记
func Display(s *Spec) string {
	var b strings.Builder
	b.WriteString(displayValue(s.Method))
	b.WriteString(" ")
	b.WriteString(displayValue(s.URL))
	if s.HTTPS != nil {
		fmt.Fprintf(&b, " https=%t", *s.HTTPS)
	}
	if len(s.Ports) > 0 {
		fmt.Fprintf(&b, " port=%v", s.Ports)
	}
	if s.WebSocket != nil {
		fmt.Fprintf(&b, " webSocket=%t", *s.WebSocket)
	}
	appendValueMap(&b, "headers", s.Headers)
	appendValueMap(&b, "query", s.Query)
	return b.String()
}

func displayValue(v *Value) string {
	if v == nil {
		return "*"
	}
	if v.IsPattern() {
		return "~" + v.String()
	}
	return v.String()
}

func appendValueMap(b *strings.Builder, label string, m map[string]Value) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		v := m[name]
		pairs = append(pairs, name+"="+displayValue(&v))
	}
	fmt.Fprintf(b, " %s[%s]", label, strings.Join(pairs, " "))
}
