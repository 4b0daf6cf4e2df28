package ecode

// 业务错误码，0表示成功
const (
	Success = 0

	Unknown     = 10001 // 未知错误
	ValidateErr = 10002 // 参数校验失败
	NotFoundErr = 10003 // 资源不存在
	ConflictErr = 10004 // 状态冲突（如 advance-and-tick 已在运行）
	InternalErr = 10005 // 内部错误

	BrokerErr  = 20001 // 券商网关调用失败
	TimeoutErr = 20002 // 调用超时（如 tick 超过单步预算）
)

var messages = map[int]string{
	Success:     "OK",
	Unknown:     "unknown error",
	ValidateErr: "validation failed",
	NotFoundErr: "not found",
	ConflictErr: "conflict",
	InternalErr: "internal error",
	BrokerErr:   "broker gateway error",
	TimeoutErr:  "timeout",
}

// Message 返回错误码对应的默认文案
func Message(code int) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return messages[Unknown]
}
