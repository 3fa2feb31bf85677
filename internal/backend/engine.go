package backend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"netstub/internal/bridge"
	"netstub/internal/logger"
	"netstub/pkg/domain"
	"netstub/pkg/matcher"
	"netstub/pkg/stub"
	"netstub/pkg/traffic"
)

// route 后端侧的已注册路由：匹配器已还原为本地形态
type route struct {
	id     domain.HandlerID
	spec   *matcher.Spec
	kind   stub.Kind
	static *stub.StaticResponse
}

// LiveRequest 一条被暂停的活动请求及其可执行的终结动作
type LiveRequest struct {
	Req      *traffic.Request
	Continue func(ctx context.Context) error
	Fulfill  func(ctx context.Context, res *stub.StaticResponse) error
	Destroy  func(ctx context.Context) error
}

// Engine 拦截后端的协议侧：维护路由表，对每条活动请求求值并回报生命周期事件
type Engine struct {
	conn bridge.Conn
	log  logger.Logger

	mu      sync.RWMutex
	routes  []*route
	pending map[domain.CorrelationID]chan bridge.Frame
}

// NewEngine 创建后端协议引擎
func NewEngine(conn bridge.Conn, l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{
		conn:    conn,
		log:     l,
		pending: make(map[domain.CorrelationID]chan bridge.Frame),
	}
}

// Run 消费驱动侧帧：注册路由并确认、转交拦截器的终结指令
func (e *Engine) Run(ctx context.Context) error {
	for {
		f, err := e.conn.Recv()
		if err != nil {
			if err == bridge.ErrClosed || ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch f.Type {
		case bridge.FrameRouteAdded:
			e.addRoute(f)
		case bridge.FrameRequestReply, bridge.FrameRequestPass, bridge.FrameRequestDestroy:
			e.deliver(f)
		default:
			e.log.Warn("后端收到未知帧类型", "type", f.Type)
		}
	}
}

// addRoute 还原匹配器并登记路由，成功后回发 route:ack
func (e *Engine) addRoute(f bridge.Frame) {
	spec, err := matcher.Rehydrate(f.Matcher)
	if err != nil {
		e.log.Err(err, "匹配器还原失败，不予确认", "handler", string(f.Handler))
		return
	}
	rt := &route{id: f.Handler, spec: spec, kind: stub.Kind(f.HandlerKind), static: f.Response}
	e.mu.Lock()
	e.routes = append(e.routes, rt)
	e.mu.Unlock()
	if err := e.conn.Send(bridge.Frame{Type: bridge.FrameRouteAck, Handler: f.Handler}); err != nil {
		e.log.Err(err, "route:ack 发送失败", "handler", string(f.Handler))
	}
}

// deliver 把拦截器的终结指令交给等待中的请求
func (e *Engine) deliver(f bridge.Frame) {
	e.mu.RLock()
	ch, ok := e.pending[f.Correlation]
	e.mu.RUnlock()
	if !ok {
		e.log.Warn("终结指令找不到等待中的请求", "correlation", string(f.Correlation))
		return
	}
	select {
	case ch <- f:
	default:
	}
}

// match 后注册的路由优先
func (e *Engine) match(req *traffic.Request) *route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := len(e.routes) - 1; i >= 0; i-- {
		if e.routes[i].spec.MatchRequest(req) {
			return e.routes[i]
		}
	}
	return nil
}

// Offer 对一条活动请求求值并执行终结；动态路由会阻塞到拦截器给出指令，
// 每条请求独占一次 Offer 调用，互不影响
func (e *Engine) Offer(ctx context.Context, lr *LiveRequest) {
	rt := e.match(lr.Req)
	if rt == nil {
		if err := lr.Continue(ctx); err != nil {
			e.log.Err(err, "未匹配请求放行失败", "url", lr.Req.URL)
		}
		return
	}

	corr := domain.CorrelationID(uuid.NewString())
	lr.Req.Correlation = string(corr)
	e.send(bridge.Frame{Type: bridge.FrameRequestMatched, Handler: rt.id, Correlation: corr, Request: lr.Req})

	switch rt.kind {
	case stub.KindPassthrough:
		if err := lr.Continue(ctx); err != nil {
			e.log.Err(err, "放行失败", "correlation", string(corr))
		}
		e.complete(rt.id, corr, domain.OutcomePassedThrough)
	case stub.KindStatic:
		e.applyStatic(ctx, lr, rt.id, corr, rt.static)
	case stub.KindDynamic:
		e.awaitInterceptor(ctx, lr, rt.id, corr)
	default:
		e.log.Warn("未知处理器类型，降级放行", "kind", string(rt.kind))
		_ = lr.Continue(ctx)
		e.complete(rt.id, corr, domain.OutcomePassedThrough)
	}
}

// applyStatic 执行静态响应：延迟与限速只作用于本请求
func (e *Engine) applyStatic(ctx context.Context, lr *LiveRequest, id domain.HandlerID, corr domain.CorrelationID, res *stub.StaticResponse) {
	if res == nil {
		_ = lr.Continue(ctx)
		e.complete(id, corr, domain.OutcomePassedThrough)
		return
	}
	if res.DelayMS > 0 && !sleepCtx(ctx, time.Duration(res.DelayMS)*time.Millisecond) {
		return
	}
	if res.DestroySocket {
		if err := lr.Destroy(ctx); err != nil {
			e.log.Err(err, "掐断连接失败", "correlation", string(corr))
		}
		e.complete(id, corr, domain.OutcomeDestroyed)
		return
	}
	if d := throttleDelay(len(res.BodyString()), res.ThrottleKbps); d > 0 && !sleepCtx(ctx, d) {
		return
	}
	if err := lr.Fulfill(ctx, res); err != nil {
		e.log.Err(err, "存根响应下发失败", "correlation", string(corr))
	}
	e.complete(id, corr, domain.OutcomeResponded)
}

// awaitInterceptor 挂起等待驱动侧拦截器的指令，无隐式超时
func (e *Engine) awaitInterceptor(ctx context.Context, lr *LiveRequest, id domain.HandlerID, corr domain.CorrelationID) {
	ch := make(chan bridge.Frame, 1)
	e.mu.Lock()
	e.pending[corr] = ch
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, corr)
		e.mu.Unlock()
	}()

	e.send(bridge.Frame{Type: bridge.FrameContinueNeeded, Handler: id, Correlation: corr, Request: lr.Req})

	select {
	case <-ctx.Done():
		// 会话拆除：在途请求直接丢弃，不发送任何响应
		return
	case f := <-ch:
		switch f.Type {
		case bridge.FrameRequestReply:
			e.applyStatic(ctx, lr, id, corr, f.Response)
		case bridge.FrameRequestDestroy:
			if err := lr.Destroy(ctx); err != nil {
				e.log.Err(err, "掐断连接失败", "correlation", string(corr))
			}
			e.complete(id, corr, domain.OutcomeDestroyed)
		default:
			if err := lr.Continue(ctx); err != nil {
				e.log.Err(err, "放行失败", "correlation", string(corr))
			}
			e.complete(id, corr, domain.OutcomePassedThrough)
		}
	}
}

func (e *Engine) complete(id domain.HandlerID, corr domain.CorrelationID, outcome domain.Outcome) {
	e.send(bridge.Frame{Type: bridge.FrameRequestCompleted, Handler: id, Correlation: corr, Outcome: outcome})
}

func (e *Engine) send(f bridge.Frame) {
	if err := e.conn.Send(f); err != nil {
		e.log.Err(err, "事件帧发送失败", "type", f.Type)
	}
}

// throttleDelay 按限速换算响应体的传输耗时
func throttleDelay(bodyLen int, kbps float64) time.Duration {
	if kbps <= 0 || bodyLen == 0 {
		return 0
	}
	seconds := float64(bodyLen) / 1024.0 / kbps
	return time.Duration(seconds * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
