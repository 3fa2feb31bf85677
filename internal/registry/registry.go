package registry

import (
	"sync"
	"time"

	"netstub/internal/logger"
	"netstub/pkg/domain"
	"netstub/pkg/matcher"
	"netstub/pkg/stub"
)

// Entry 一条已注册路由及其计数器与在途请求表
type Entry struct {
	ID        domain.HandlerID
	Alias     string
	Spec      *matcher.Spec
	Annotated *matcher.Annotated
	Handler   *stub.Handler
	Display   string
	CreatedAt int64

	hits    int64
	pending map[domain.CorrelationID]*domain.RequestContext
}

// Registry 会话私有的路由表，会话结束时整体销毁
type Registry struct {
	mu       sync.RWMutex
	routes   map[domain.HandlerID]*Entry
	aliases  map[string]domain.HandlerID
	resolved map[domain.CorrelationID]domain.RequestState
	log      logger.Logger
}

// New 创建路由表
func New(l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	return &Registry{
		routes:   make(map[domain.HandlerID]*Entry),
		aliases:  make(map[string]domain.HandlerID),
		resolved: make(map[domain.CorrelationID]domain.RequestState),
		log:      l,
	}
}

// Prepare 执行注册管线的本地步骤：校验、分类、归一化、编号、展示形态。
// 任何一步失败都不留下任何表项。
func (r *Registry) Prepare(spec any, handler any, alias string) (*Entry, error) {
	parsed, err := matcher.Parse(spec)
	if err != nil {
		return nil, err
	}
	h, err := stub.Classify(handler)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:        NewHandlerID(),
		Alias:     alias,
		Spec:      parsed,
		Annotated: matcher.Annotate(parsed),
		Handler:   h,
		Display:   matcher.Display(parsed),
		CreatedAt: time.Now().UnixMilli(),
		pending:   make(map[domain.CorrelationID]*domain.RequestContext),
	}, nil
}

// Insert 插入表项
func (r *Registry) Insert(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[e.ID] = e
	if e.Alias != "" {
		r.aliases[e.Alias] = e.ID
	}
	r.log.Info("注册路由", "handler", string(e.ID), "alias", e.Alias, "matcher", e.Display, "kind", string(e.Handler.Kind))
}

// Remove 移除表项（注册超时回滚时使用）
func (r *Registry) Remove(id domain.HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.routes[id]
	if !ok {
		return false
	}
	delete(r.routes, id)
	if e.Alias != "" {
		delete(r.aliases, e.Alias)
	}
	return true
}

// Lookup 查询表项，未知或已销毁返回 false
func (r *Registry) Lookup(id domain.HandlerID) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.routes[id]
	return e, ok
}

// ByAlias 按别名查询 handlerId
func (r *Registry) ByAlias(alias string) (domain.HandlerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.aliases[alias]
	return id, ok
}

// RecordHit 后端命中上报：递增计数并登记在途请求。
// 路由可能在后端匹配之后、上报之前被拆除，未知 id 只记日志。
func (r *Registry) RecordHit(id domain.HandlerID, rc *domain.RequestContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.routes[id]
	if !ok {
		r.log.Debug("命中已拆除的路由，忽略", "handler", string(id), "correlation", string(rc.Correlation))
		return
	}
	rc.Handler = id
	rc.State = domain.StateMatched
	e.hits++
	e.pending[rc.Correlation] = rc
}

// SetState 更新在途请求状态
func (r *Registry) SetState(id domain.HandlerID, correlation domain.CorrelationID, state domain.RequestState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.routes[id]
	if !ok {
		return false
	}
	rc, ok := e.pending[correlation]
	if !ok {
		return false
	}
	rc.State = state
	return true
}

// Resolve 请求终结：从在途表移除并记录终态。
// 已终结的 correlation 再次终结报 DoubleResolution，完全未知报 UnknownRequest。
func (r *Registry) Resolve(id domain.HandlerID, correlation domain.CorrelationID, outcome domain.Outcome) (*domain.RequestContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, done := r.resolved[correlation]; done {
		return nil, &domain.DoubleResolutionError{Handler: id, Correlation: correlation, Prior: prior}
	}
	e, ok := r.routes[id]
	if !ok {
		return nil, &domain.UnknownRequestError{Handler: id, Correlation: correlation}
	}
	rc, ok := e.pending[correlation]
	if !ok {
		return nil, &domain.UnknownRequestError{Handler: id, Correlation: correlation}
	}
	delete(e.pending, correlation)
	rc.State = outcome.State()
	r.resolved[correlation] = rc.State
	return rc, nil
}

// Hits 返回路由命中次数
func (r *Registry) Hits(id domain.HandlerID) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.routes[id]
	if !ok {
		return 0, false
	}
	return e.hits, true
}

// Stats 返回全部路由的命中统计
func (r *Registry) Stats() []domain.RouteStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RouteStats, 0, len(r.routes))
	for _, e := range r.routes {
		out = append(out, domain.RouteStats{
			Handler: e.ID,
			Alias:   e.Alias,
			Display: e.Display,
			Hits:    e.hits,
			Pending: len(e.pending),
		})
	}
	return out
}

// DiscardPending 会话拆除：丢弃全部在途请求，不做任何终结
func (r *Registry) DiscardPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.routes {
		n += len(e.pending)
		e.pending = make(map[domain.CorrelationID]*domain.RequestContext)
	}
	if n > 0 {
		r.log.Warn("丢弃在途请求", "count", n)
	}
	return n
}

// Clear 移除全部路由
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.routes)
	r.routes = make(map[domain.HandlerID]*Entry)
	r.aliases = make(map[string]domain.HandlerID)
	return n
}
