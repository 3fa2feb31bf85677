package service

import (
	"context"
	"fmt"

	"netstub/internal/logger"
	"netstub/internal/session"
	"netstub/pkg/domain"
)

// Service 服务层：对外暴露会话与路由操作
type Service struct {
	mgr *session.Manager
	log logger.Logger
}

// New 创建服务实例
func New(l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{
		mgr: session.NewManager(l),
		log: l,
	}
}

// StartSession 创建并启动会话
func (s *Service) StartSession(cfg domain.SessionConfig) (domain.SessionID, error) {
	sess := s.mgr.Create("", cfg)
	if err := sess.Start(context.Background()); err != nil {
		s.mgr.Delete(sess.ID)
		return "", err
	}
	return sess.ID, nil
}

// StopSession 拆除会话
func (s *Service) StopSession(id domain.SessionID) error {
	if _, ok := s.mgr.Get(id); !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	s.mgr.Delete(id)
	return nil
}

// Register 注册路由
func (s *Service) Register(id domain.SessionID, spec any, handler any) (domain.HandlerID, error) {
	return s.RegisterAs(id, "", spec, handler)
}

// RegisterAs 带别名注册路由
func (s *Service) RegisterAs(id domain.SessionID, alias string, spec any, handler any) (domain.HandlerID, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return "", fmt.Errorf("session not found: %s", id)
	}
	return sess.RegisterAs(alias, spec, handler)
}

// Hits 查询路由命中次数
func (s *Service) Hits(id domain.SessionID, handler domain.HandlerID) (int64, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return 0, fmt.Errorf("session not found: %s", id)
	}
	n, ok := sess.Hits(handler)
	if !ok {
		return 0, fmt.Errorf("handler not found: %s", handler)
	}
	return n, nil
}

// HitsByAlias 按别名查询命中次数
func (s *Service) HitsByAlias(id domain.SessionID, alias string) (int64, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return 0, fmt.Errorf("session not found: %s", id)
	}
	n, ok := sess.HitsByAlias(alias)
	if !ok {
		return 0, fmt.Errorf("alias not found: %s", alias)
	}
	return n, nil
}

// GetRouteStats 获取路由统计信息
func (s *Service) GetRouteStats(id domain.SessionID) ([]domain.RouteStats, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess.Stats(), nil
}

// SubscribeEvents 订阅会话事件流
func (s *Service) SubscribeEvents(id domain.SessionID) (<-chan domain.InterceptEvent, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess.Events(), nil
}

// Shutdown 拆除全部会话
func (s *Service) Shutdown() {
	s.mgr.Shutdown()
}
