package backend

import (
	"encoding/json"

	"github.com/mafredri/cdp/protocol/fetch"

	"netstub/pkg/stub"
	"netstub/pkg/traffic"
)

// toNeutralRequest 将 CDP 暂停事件转换为中立 Request 模型
func toNeutralRequest(ev *fetch.RequestPausedReply) *traffic.Request {
	req := traffic.NewRequest()
	req.URL = ev.Request.URL
	req.Method = ev.Request.Method
	req.ResourceType = string(ev.ResourceType)

	var headers map[string]string
	if len(ev.Request.Headers) > 0 {
		if err := json.Unmarshal(ev.Request.Headers, &headers); err == nil {
			for k, v := range headers {
				req.Headers.Set(k, v)
			}
		}
	}
	if ev.Request.PostData != nil {
		req.Body = []byte(*ev.Request.PostData)
	}
	req.ParseURL()
	if req.ResourceType == "WebSocket" {
		req.WebSocket = true
	}
	return req
}

// toFulfillArgs 将存根响应转换为 Fetch.fulfillRequest 参数
func toFulfillArgs(id fetch.RequestID, res *stub.StaticResponse) *fetch.FulfillRequestArgs {
	args := &fetch.FulfillRequestArgs{RequestID: id, ResponseCode: res.StatusCode}
	if len(res.Headers) > 0 {
		args.ResponseHeaders = toHeaderEntries(res.Headers)
	}
	if body := res.BodyString(); body != "" {
		args.Body = []byte(body)
	}
	return args
}

func toHeaderEntries(h map[string]string) []fetch.HeaderEntry {
	out := make([]fetch.HeaderEntry, 0, len(h))
	for k, v := range h {
		out = append(out, fetch.HeaderEntry{Name: k, Value: v})
	}
	return out
}
