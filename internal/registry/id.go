package registry

import (
	"fmt"
	"sync/atomic"
	"time"

	"netstub/pkg/domain"
)

var handlerSeq atomic.Uint64

// NewHandlerID 生成全局唯一 handlerId：毫秒时间戳 + 进程内单调序号
func NewHandlerID() domain.HandlerID {
	return domain.HandlerID(fmt.Sprintf("h%d-%d", time.Now().UnixMilli(), handlerSeq.Add(1)))
}
