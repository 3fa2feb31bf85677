package api

import (
	"netstub/internal/logger"
	"netstub/internal/service"
	"netstub/pkg/domain"
)

// Service 服务接口
type Service interface {
	// StartSession 启动会话
	StartSession(cfg domain.SessionConfig) (domain.SessionID, error)

	// StopSession 停止会话
	StopSession(id domain.SessionID) error

	// Register 注册路由：匹配器 + 处理器，同步等待后端确认
	Register(id domain.SessionID, spec any, handler any) (domain.HandlerID, error)

	// RegisterAs 带别名注册路由
	RegisterAs(id domain.SessionID, alias string, spec any, handler any) (domain.HandlerID, error)

	// Hits 查询路由命中次数
	Hits(id domain.SessionID, handler domain.HandlerID) (int64, error)

	// HitsByAlias 按别名查询命中次数
	HitsByAlias(id domain.SessionID, alias string) (int64, error)

	// GetRouteStats 获取路由统计信息
	GetRouteStats(id domain.SessionID) ([]domain.RouteStats, error)

	// SubscribeEvents 订阅事件
	SubscribeEvents(id domain.SessionID) (<-chan domain.InterceptEvent, error)
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger) Service {
	return service.New(l)
}
