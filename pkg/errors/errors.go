package errors

import (
	"errors"
	"fmt"

	"tickflow/pkg/errors/ecode"
)

// 带业务错误码的error，response.JSON 通过 DecodeErr 解出 code/message

type codedError struct {
	code    int
	message string
	cause   error
}

func (e *codedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *codedError) Unwrap() error { return e.cause }

// WithCode 创建一个带错误码的error
func WithCode(code int, format string, args ...interface{}) error {
	return &codedError{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层error并附加错误码和说明
func Wrap(err error, code int, message string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, message: message, cause: err}
}

// Code 取出错误码；普通error返回 Unknown
func Code(err error) int {
	if err == nil {
		return ecode.Success
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return ecode.Unknown
}

// DecodeErr 解出 (code, message) 用于响应
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, ecode.Message(ecode.Success)
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code, ce.Error()
	}
	return ecode.Unknown, err.Error()
}

// IsCode 判断error是否携带指定错误码
func IsCode(err error, code int) bool {
	return Code(err) == code
}
