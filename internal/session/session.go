package session

import (
	"context"
	"sync"
	"time"

	"netstub/internal/backend"
	"netstub/internal/bridge"
	"netstub/internal/logger"
	"netstub/internal/registry"
	"netstub/pkg/domain"
)

const defaultEventBuffer = 256

// Session 一次测试会话：私有路由表、协议桥与拦截后端，生命周期同驱动进程绑定
type Session struct {
	ID  domain.SessionID
	cfg domain.SessionConfig

	reg     *registry.Registry
	br      *bridge.Bridge
	engine  *backend.Engine
	manager *backend.Manager
	events  chan domain.InterceptEvent
	log     logger.Logger

	cancel context.CancelFunc
	once   sync.Once
}

// New 组装会话：进程内管道连接驱动侧桥与后端引擎
func New(id domain.SessionID, cfg domain.SessionConfig, l logger.Logger) *Session {
	if l == nil {
		l = logger.NewNop()
	}
	l = l.With("session", string(id))

	buffer := cfg.PendingCapacity
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	s := &Session{
		ID:     id,
		cfg:    cfg,
		events: make(chan domain.InterceptEvent, buffer),
		log:    l,
	}
	s.reg = registry.New(l)

	driverConn, backendConn := bridge.Pipe()
	timeout := time.Duration(cfg.RegistrationTimeoutMS) * time.Millisecond
	s.br = bridge.New(driverConn, s.reg, l, s.emit, timeout)
	s.engine = backend.NewEngine(backendConn, l)
	if cfg.DevToolsURL != "" {
		s.manager = backend.NewManager(cfg.DevToolsURL, s.engine, cfg.Concurrency, l)
	}
	return s
}

// Start 启动桥与后端；配置了调试地址时附着目标并开启拦截
func (s *Session) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		if err := s.br.Run(ctx); err != nil {
			s.log.Err(err, "协议桥退出")
		}
	}()
	go func() {
		if err := s.engine.Run(ctx); err != nil {
			s.log.Err(err, "后端引擎退出")
		}
	}()
	if s.manager != nil {
		if err := s.manager.AttachTarget(s.cfg.Target); err != nil {
			return err
		}
		if err := s.manager.Enable(); err != nil {
			return err
		}
	}
	s.log.Info("会话已启动")
	return nil
}

// Register 注册路由：本地管线成功后同步等待后端确认，失败不留任何表项
func (s *Session) Register(spec any, handler any) (domain.HandlerID, error) {
	return s.RegisterAs("", spec, handler)
}

// RegisterAs 带别名注册
func (s *Session) RegisterAs(alias string, spec any, handler any) (domain.HandlerID, error) {
	entry, err := s.reg.Prepare(spec, handler, alias)
	if err != nil {
		return "", err
	}
	s.reg.Insert(entry)
	if err := s.br.RegisterRoute(entry); err != nil {
		s.reg.Remove(entry.ID)
		s.log.Err(err, "后端确认失败，回滚路由", "handler", string(entry.ID))
		return "", err
	}
	s.emit(domain.InterceptEvent{
		Type:    domain.EventRouteRegistered,
		Handler: entry.ID,
		Alias:   entry.Alias,
		Display: entry.Display,
	})
	return entry.ID, nil
}

// Events 会话事件流，缓冲满时丢弃最旧之外的新事件
func (s *Session) Events() <-chan domain.InterceptEvent {
	return s.events
}

// Hits 路由命中次数
func (s *Session) Hits(id domain.HandlerID) (int64, bool) {
	return s.reg.Hits(id)
}

// HitsByAlias 按别名查命中次数
func (s *Session) HitsByAlias(alias string) (int64, bool) {
	id, ok := s.reg.ByAlias(alias)
	if !ok {
		return 0, false
	}
	return s.reg.Hits(id)
}

// Stats 全部路由的命中统计
func (s *Session) Stats() []domain.RouteStats {
	return s.reg.Stats()
}

// Close 拆除会话：在途请求直接丢弃，路由表整体销毁
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.manager != nil {
			err = s.manager.Detach()
		}
		_ = s.br.Close()
		s.reg.DiscardPending()
		s.reg.Clear()
		s.log.Info("会话已销毁")
	})
	return err
}

func (s *Session) emit(ev domain.InterceptEvent) {
	ev.Session = s.ID
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn("事件缓冲已满，丢弃事件", "type", ev.Type)
	}
}
