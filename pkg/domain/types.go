package domain

type SessionID string
type HandlerID string
type CorrelationID string

// RequestState 请求生命周期状态
type RequestState string

const (
	StateMatched         RequestState = "matched"
	StateAwaitingHandler RequestState = "awaitingHandler"
	StateResponded       RequestState = "responded"
	StatePassedThrough   RequestState = "passedThrough"
	StateDestroyed       RequestState = "destroyed"
)

// Terminal 判断状态是否为终态，终态之后不再接受任何事件
func (s RequestState) Terminal() bool {
	switch s {
	case StateResponded, StatePassedThrough, StateDestroyed:
		return true
	}
	return false
}

// Outcome 后端上报的请求终结结果
type Outcome string

const (
	OutcomeResponded     Outcome = "responded"
	OutcomePassedThrough Outcome = "passedThrough"
	OutcomeDestroyed     Outcome = "destroyed"
)

// State 将终结结果映射为对应的终态
func (o Outcome) State() RequestState {
	switch o {
	case OutcomeResponded:
		return StateResponded
	case OutcomePassedThrough:
		return StatePassedThrough
	case OutcomeDestroyed:
		return StateDestroyed
	}
	return ""
}

// RequestContext 一次被拦截请求的关联上下文
type RequestContext struct {
	Correlation CorrelationID `json:"correlationId"`
	Handler     HandlerID     `json:"handlerId"`
	URL         string        `json:"url"`
	Method      string        `json:"method"`
	ArrivedAt   int64         `json:"arrivedAt"`
	State       RequestState  `json:"state"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	DevToolsURL           string `json:"devToolsURL" yaml:"devToolsURL"`
	Target                string `json:"target" yaml:"target"`
	Concurrency           int    `json:"concurrency" yaml:"concurrency"`
	PendingCapacity       int    `json:"pendingCapacity" yaml:"pendingCapacity"`
	RegistrationTimeoutMS int    `json:"registrationTimeoutMS" yaml:"registrationTimeoutMS"`
}

// InterceptEvent 会话事件，供日志视图与等待引擎消费
type InterceptEvent struct {
	Type        string        `json:"type"`
	Session     SessionID     `json:"session"`
	Handler     HandlerID     `json:"handler"`
	Alias       string        `json:"alias,omitempty"`
	Correlation CorrelationID `json:"correlationId,omitempty"`
	URL         string        `json:"url,omitempty"`
	Method      string        `json:"method,omitempty"`
	Outcome     Outcome       `json:"outcome,omitempty"`
	Display     string        `json:"display,omitempty"`
	Error       string        `json:"error,omitempty"`
	LatencyMS   int64         `json:"latencyMS,omitempty"`
	Timestamp   int64         `json:"timestamp"`
}

// 事件类型
const (
	EventRouteRegistered = "route:registered"
	EventRequestMatched  = "request:matched"
	EventRequestResolved = "request:resolved"
	EventProtocolError   = "protocol:error"
)

// RouteStats 单条路由的命中统计
type RouteStats struct {
	Handler HandlerID `json:"handler"`
	Alias   string    `json:"alias,omitempty"`
	Display string    `json:"display"`
	Hits    int64     `json:"hits"`
	Pending int       `json:"pending"`
}
