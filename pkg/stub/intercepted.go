package stub

import (
	"sync"

	"netstub/pkg/traffic"
)

// Intercepted 交给拦截器的可变请求门面，终结动作至多生效一次
type Intercepted struct {
	Request *traffic.Request

	mu       sync.Mutex
	resolved bool

	reply   func(*StaticResponse) error
	pass    func() error
	destroy func() error
}

// NewIntercepted 由桥构造门面并注入终结回调
func NewIntercepted(req *traffic.Request, reply func(*StaticResponse) error, pass func() error, destroy func() error) *Intercepted {
	return &Intercepted{Request: req, reply: reply, pass: pass, destroy: destroy}
}

// Reply 用静态响应终结该请求
func (ic *Intercepted) Reply(res *StaticResponse) error {
	if err := res.Normalize(); err != nil {
		return err
	}
	if !ic.claim() {
		return nil
	}
	return ic.reply(res)
}

// Continue 放行该请求（可先修改 Request 再放行）
func (ic *Intercepted) Continue() error {
	if !ic.claim() {
		return nil
	}
	return ic.pass()
}

// Destroy 直接掐断连接，不发送响应
func (ic *Intercepted) Destroy() error {
	if !ic.claim() {
		return nil
	}
	return ic.destroy()
}

// Resolved 判断拦截器是否已显式终结该请求
func (ic *Intercepted) Resolved() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.resolved
}

func (ic *Intercepted) claim() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.resolved {
		return false
	}
	ic.resolved = true
	return true
}
