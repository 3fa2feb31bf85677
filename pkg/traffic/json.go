package traffic

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSONGet 读取 JSON 请求体中的字段
func (r *Request) JSONGet(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// JSONSet 原位修改 JSON 请求体中的字段
func (r *Request) JSONSet(path string, value any) error {
	b, err := sjson.SetBytes(r.Body, path, value)
	if err != nil {
		return err
	}
	r.Body = b
	return nil
}

// JSONGet 读取 JSON 响应体中的字段
func (r *Response) JSONGet(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// JSONSet 原位修改 JSON 响应体中的字段
func (r *Response) JSONSet(path string, value any) error {
	b, err := sjson.SetBytes(r.Body, path, value)
	if err != nil {
		return err
	}
	r.Body = b
	return nil
}
