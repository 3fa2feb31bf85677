package bridge

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"netstub/pkg/domain"
	"netstub/pkg/matcher"
	"netstub/pkg/stub"
	"netstub/pkg/traffic"
)

// 帧类型：route:* 为驱动侧出站，request:* 在两个方向上往返
const (
	FrameRouteAdded       = "route:added"
	FrameRouteAck         = "route:ack"
	FrameRequestMatched   = "request:matched"
	FrameContinueNeeded   = "request:continue-needed"
	FrameRequestReply     = "request:reply"
	FrameRequestPass      = "request:pass"
	FrameRequestDestroy   = "request:destroy"
	FrameRequestCompleted = "request:completed"
)

// Frame 跨进程事件帧
type Frame struct {
	Type        string               `json:"type"`
	Handler     domain.HandlerID     `json:"handlerId,omitempty"`
	Correlation domain.CorrelationID `json:"correlationId,omitempty"`
	Matcher     *matcher.Annotated   `json:"matcher,omitempty"`
	HandlerKind string               `json:"handlerKind,omitempty"`
	Response    *stub.StaticResponse `json:"response,omitempty"`
	Request     *traffic.Request     `json:"request,omitempty"`
	Outcome     domain.Outcome       `json:"outcome,omitempty"`
}

// ErrClosed 连接已关闭
var ErrClosed = errors.New("bridge: connection closed")

// Conn 后端连接：双向帧传输，Send/Recv 可被并发调用
type Conn interface {
	Send(Frame) error
	Recv() (Frame, error)
	Close() error
}

// Pipe 返回一对内存互联的连接，用于进程内后端与测试
func Pipe() (Conn, Conn) {
	ab := make(chan Frame, 64)
	ba := make(chan Frame, 64)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &pipeConn{out: ab, in: ba, done: done, once: once}
	b := &pipeConn{out: ba, in: ab, done: done, once: once}
	return a, b
}

type pipeConn struct {
	out  chan<- Frame
	in   <-chan Frame
	done chan struct{}
	once *sync.Once
}

func (c *pipeConn) Send(f Frame) error {
	select {
	case <-c.done:
		return ErrClosed
	case c.out <- f:
		return nil
	}
}

func (c *pipeConn) Recv() (Frame, error) {
	select {
	case <-c.done:
		return Frame{}, ErrClosed
	case f := <-c.in:
		return f, nil
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// NewStreamConn 在行分隔 JSON 流上建立连接，用于外部后端进程
func NewStreamConn(rw io.ReadWriter) Conn {
	sc := bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return &streamConn{rw: rw, scanner: sc}
}

type streamConn struct {
	rw      io.ReadWriter
	scanner *bufio.Scanner
	wmu     sync.Mutex
}

func (c *streamConn) Send(f Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.rw.Write(append(raw, '\n')); err != nil {
		return err
	}
	return nil
}

func (c *streamConn) Recv() (Frame, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Frame{}, err
		}
		return Frame{}, ErrClosed
	}
	var f Frame
	if err := json.Unmarshal(c.scanner.Bytes(), &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (c *streamConn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
