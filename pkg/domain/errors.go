package domain

import (
	"fmt"
	"time"
)

// MalformedMatcherError 匹配器结构非法，注册前同步抛出，调用方需修正匹配器
type MalformedMatcherError struct {
	Field  string
	Reason string
}

func (e *MalformedMatcherError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed matcher: %s", e.Reason)
	}
	return fmt.Sprintf("malformed matcher: field %q %s", e.Field, e.Reason)
}

// InvalidHandlerError 处理器形态不被识别
type InvalidHandlerError struct {
	Value any
}

func (e *InvalidHandlerError) Error() string {
	return fmt.Sprintf("invalid handler: %T(%v) is not nil, a string, a mapping, a static response or an interceptor func", e.Value, e.Value)
}

// ConflictingResponseFieldsError 静态响应互斥字段同时出现
type ConflictingResponseFieldsError struct {
	Fields []string
}

func (e *ConflictingResponseFieldsError) Error() string {
	return fmt.Sprintf("conflicting response fields: destroySocket cannot be combined with %v", e.Fields)
}

// RegistrationTimeoutError 后端未在期限内确认 route:added，注册已回滚
type RegistrationTimeoutError struct {
	Handler HandlerID
	Timeout time.Duration
}

func (e *RegistrationTimeoutError) Error() string {
	return fmt.Sprintf("registration timeout: backend did not acknowledge route %s within %s", e.Handler, e.Timeout)
}

// DoubleResolutionError 同一 correlation id 出现第二次终结事件，协议不变量被破坏
type DoubleResolutionError struct {
	Handler     HandlerID
	Correlation CorrelationID
	Prior       RequestState
}

func (e *DoubleResolutionError) Error() string {
	return fmt.Sprintf("double resolution: request %s on route %s already terminal in state %q", e.Correlation, e.Handler, e.Prior)
}

// UnknownRequestError correlation id 不在在途表中，协议失步
type UnknownRequestError struct {
	Handler     HandlerID
	Correlation CorrelationID
}

func (e *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown request: correlation %s is not pending on route %s", e.Correlation, e.Handler)
}
