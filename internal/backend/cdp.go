package backend

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"

	"netstub/internal/logger"
	"netstub/pkg/stub"
)

const defaultConcurrency = 32

// Manager 基于 CDP Fetch 域的拦截后端：
// 附着调试目标，在请求阶段暂停流量并交给引擎裁决
type Manager struct {
	devtoolsURL string
	conn        *rpcc.Conn
	client      *cdp.Client
	ctx         context.Context
	cancel      context.CancelFunc
	engine      *Engine
	sem         chan struct{}
	log         logger.Logger
}

// NewManager 创建 CDP 后端
func NewManager(devtoolsURL string, engine *Engine, concurrency int, l logger.Logger) *Manager {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		devtoolsURL: devtoolsURL,
		engine:      engine,
		sem:         make(chan struct{}, concurrency),
		log:         l,
	}
}

// AttachTarget 附着指定调试目标，target 为空时取第一个
func (m *Manager) AttachTarget(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return err
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == target || target == "" {
			sel = targets[i]
			if target == "" {
				break
			}
		}
	}
	if sel == nil {
		return fmt.Errorf("no target")
	}
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return err
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	return nil
}

// Detach 断开调试连接
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Enable 开启请求阶段拦截并启动消费循环
func (m *Manager) Enable() error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	if err := m.client.Network.Enable(m.ctx, nil); err != nil {
		return err
	}
	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
	}
	if err := m.client.Fetch.Enable(m.ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return err
	}
	go m.consume()
	return nil
}

// Disable 关闭拦截
func (m *Manager) Disable() error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	return m.client.Fetch.Disable(m.ctx)
}

func (m *Manager) consume() {
	rp, err := m.client.Fetch.RequestPaused(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅 RequestPaused 失败")
		return
	}
	defer rp.Close()
	for {
		ev, err := rp.Recv()
		if err != nil {
			return
		}
		m.dispatch(ev)
	}
}

// dispatch 并发上限内逐条处理；拦截器可长时间挂起，超限时降级放行避免页面卡死
func (m *Manager) dispatch(ev *fetch.RequestPausedReply) {
	select {
	case m.sem <- struct{}{}:
	default:
		m.log.Warn("并发拦截数已达上限，降级放行", "url", ev.Request.URL)
		_ = m.client.Fetch.ContinueRequest(m.ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID})
		return
	}
	go func() {
		defer func() { <-m.sem }()
		m.engine.Offer(m.ctx, m.liveRequest(ev))
	}()
}

// liveRequest 将暂停事件封装为引擎可裁决的活动请求
func (m *Manager) liveRequest(ev *fetch.RequestPausedReply) *LiveRequest {
	return &LiveRequest{
		Req: toNeutralRequest(ev),
		Continue: func(ctx context.Context) error {
			return m.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID})
		},
		Fulfill: func(ctx context.Context, res *stub.StaticResponse) error {
			return m.client.Fetch.FulfillRequest(ctx, toFulfillArgs(ev.RequestID, res))
		},
		Destroy: func(ctx context.Context) error {
			return m.client.Fetch.FailRequest(ctx, &fetch.FailRequestArgs{
				RequestID:   ev.RequestID,
				ErrorReason: network.ErrorReasonConnectionAborted,
			})
		},
	}
}
