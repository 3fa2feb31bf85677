package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"netstub/internal/logger"
	"netstub/internal/registry"
	"netstub/pkg/domain"
	"netstub/pkg/stub"
)

// 默认注册确认期限
const defaultRegistrationTimeout = 5 * time.Second

// Bridge 驱动与拦截后端之间唯一跨进程组件：
// 出站发送 route:added，入站消费请求生命周期事件并驱动路由表
type Bridge struct {
	conn    Conn
	reg     *registry.Registry
	log     logger.Logger
	emit    func(domain.InterceptEvent)
	timeout time.Duration

	mu   sync.Mutex
	acks map[domain.HandlerID]chan struct{}

	wg sync.WaitGroup
}

// New 创建协议桥
func New(conn Conn, reg *registry.Registry, l logger.Logger, emit func(domain.InterceptEvent), timeout time.Duration) *Bridge {
	if l == nil {
		l = logger.NewNop()
	}
	if emit == nil {
		emit = func(domain.InterceptEvent) {}
	}
	if timeout <= 0 {
		timeout = defaultRegistrationTimeout
	}
	return &Bridge{
		conn:    conn,
		reg:     reg,
		log:     l,
		emit:    emit,
		timeout: timeout,
		acks:    make(map[domain.HandlerID]chan struct{}),
	}
}

// RegisterRoute 发送 route:added 并等待后端确认；超时由调用方回滚表项
func (b *Bridge) RegisterRoute(e *registry.Entry) error {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.acks[e.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.acks, e.ID)
		b.mu.Unlock()
	}()

	f := Frame{
		Type:        FrameRouteAdded,
		Handler:     e.ID,
		Matcher:     e.Annotated,
		HandlerKind: string(e.Handler.Kind),
	}
	if e.Handler.Kind == stub.KindStatic {
		f.Response = e.Handler.Static
	}
	if err := b.conn.Send(f); err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-time.After(b.timeout):
		return &domain.RegistrationTimeoutError{Handler: e.ID, Timeout: b.timeout}
	}
}

// Run 持续接收后端帧并分发处理；单协程分发保证同一 correlation 的事件有序
func (b *Bridge) Run(ctx context.Context) error {
	for {
		f, err := b.conn.Recv()
		if err != nil {
			b.wg.Wait()
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.dispatch(ctx, f)
	}
}

// Close 关闭与后端的连接
func (b *Bridge) Close() error {
	return b.conn.Close()
}

func (b *Bridge) dispatch(ctx context.Context, f Frame) {
	switch f.Type {
	case FrameRouteAck:
		b.mu.Lock()
		ch, ok := b.acks[f.Handler]
		b.mu.Unlock()
		if ok {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	case FrameRequestMatched:
		b.handleMatched(f)
	case FrameContinueNeeded:
		b.handleContinueNeeded(ctx, f)
	case FrameRequestCompleted:
		b.handleCompleted(f)
	default:
		b.log.Warn("收到未知帧类型", "type", f.Type)
	}
}

// handleMatched 命中上报：登记在途请求并递增计数
func (b *Bridge) handleMatched(f Frame) {
	if f.Request == nil {
		b.log.Warn("request:matched 缺少请求快照", "handler", string(f.Handler))
		return
	}
	rc := &domain.RequestContext{
		Correlation: f.Correlation,
		Handler:     f.Handler,
		URL:         f.Request.URL,
		Method:      f.Request.Method,
		ArrivedAt:   time.Now().UnixMilli(),
		State:       domain.StateMatched,
	}
	b.reg.RecordHit(f.Handler, rc)
	b.emit(domain.InterceptEvent{
		Type:        domain.EventRequestMatched,
		Handler:     f.Handler,
		Correlation: f.Correlation,
		URL:         f.Request.URL,
		Method:      f.Request.Method,
	})
}

// handleContinueNeeded 调用动态拦截器；拦截器可任意挂起，期间不阻塞其他请求
func (b *Bridge) handleContinueNeeded(ctx context.Context, f Frame) {
	entry, ok := b.reg.Lookup(f.Handler)
	if !ok || entry.Handler.Kind != stub.KindDynamic || entry.Handler.Interceptor == nil {
		b.log.Warn("无法调用拦截器，降级放行", "handler", string(f.Handler), "correlation", string(f.Correlation))
		b.sendResolution(Frame{Type: FrameRequestPass, Handler: f.Handler, Correlation: f.Correlation})
		return
	}
	b.reg.SetState(f.Handler, f.Correlation, domain.StateAwaitingHandler)

	ic := stub.NewIntercepted(f.Request,
		func(res *stub.StaticResponse) error {
			return b.sendResolution(Frame{Type: FrameRequestReply, Handler: f.Handler, Correlation: f.Correlation, Response: res})
		},
		func() error {
			return b.sendResolution(Frame{Type: FrameRequestPass, Handler: f.Handler, Correlation: f.Correlation})
		},
		func() error {
			return b.sendResolution(Frame{Type: FrameRequestDestroy, Handler: f.Handler, Correlation: f.Correlation})
		},
	)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		entry.Handler.Interceptor(ic)
		// 拦截器返回却未显式终结时默认放行
		if !ic.Resolved() {
			if err := ic.Continue(); err != nil {
				b.log.Err(err, "默认放行失败", "correlation", string(f.Correlation))
			}
		}
	}()
}

// handleCompleted 请求终结：协议失步与重复终结要上报而不是吞掉
func (b *Bridge) handleCompleted(f Frame) {
	rc, err := b.reg.Resolve(f.Handler, f.Correlation, f.Outcome)
	if err != nil {
		b.log.Err(err, "请求终结事件非法", "handler", string(f.Handler), "correlation", string(f.Correlation))
		b.emit(domain.InterceptEvent{
			Type:        domain.EventProtocolError,
			Handler:     f.Handler,
			Correlation: f.Correlation,
			Error:       err.Error(),
		})
		return
	}
	b.emit(domain.InterceptEvent{
		Type:        domain.EventRequestResolved,
		Handler:     f.Handler,
		Correlation: f.Correlation,
		URL:         rc.URL,
		Method:      rc.Method,
		Outcome:     f.Outcome,
		LatencyMS:   time.Now().UnixMilli() - rc.ArrivedAt,
	})
}

func (b *Bridge) sendResolution(f Frame) error {
	if err := b.conn.Send(f); err != nil {
		b.log.Err(err, "终结帧发送失败", "type", f.Type, "correlation", string(f.Correlation))
		return err
	}
	return nil
}
