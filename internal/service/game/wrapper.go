package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

type RequestWrapper struct {
	ReqType string `json:"request_type"`
	// 客户端自定义的关联 ID，原样带回响应
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// TryUnwrap 在请求类型匹配且能解析时返回请求体，否则返回 nil
func TryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	var req T

	if len(wrapper.Data) == 0 {
		return &req
	}

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"解析请求失败",
			zap.String("request_type", reqType),
			zap.Error(err),
		)
		return nil
	}

	return &req
}

// 响应类型
const (
	RESP_ERROR    = "Error"
	RESP_RESULT   = "Result"
	RESP_EVENT    = "Event"
	RESP_SNAPSHOT = "Snapshot"
)

type ResponseWrapper struct {
	RespType  string    `json:"response_type"`
	RequestID string    `json:"request_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	ErrMsg    string    `json:"error_message,omitempty"`
	ErrCode   ErrorCode `json:"error_code,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(err error) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   err.Error(),
		ErrCode:  CodeOf(err),
	}
}
