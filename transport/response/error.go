package response

import (
	"errors"
	"fmt"
)

// Error 携带错误码的接口错误，经 errors.As 可从包装链中取出.
type Error struct {
	Code Code
	// Message 覆盖 Code 的默认消息，为空时使用 Code.Message
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.PublicMessage()
	}
	return fmt.Sprintf("%s: %v", e.PublicMessage(), e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// PublicMessage 返回写入响应体的消息.
func (e *Error) PublicMessage() string {
	if e.Message == "" {
		return e.Code.Message
	}
	return e.Message
}

// NewError 以错误码的默认消息创建错误.
func NewError(code Code) *Error { return &Error{Code: code} }

// NewErrorWithMessage 创建错误并指定对外消息.
func NewErrorWithMessage(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap 为 err 附加错误码.
func Wrap(code Code, err error) *Error { return &Error{Code: code, Cause: err} }

// WrapWithMessage 为 err 附加错误码与对外消息.
func WrapWithMessage(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// AsError 在包装链中查找 *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ExtractCode 提取错误码. nil 为 CodeSuccess，无法识别的错误为 CodeInternal.
func ExtractCode(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if e, ok := AsError(err); ok {
		return e.Code
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return CodeInternal
}

// ExtractMessage 提取对外消息. 5xxxx 与 6xxxx 一律使用错误码默认消息，不暴露内部细节.
func ExtractMessage(err error) string {
	code := ExtractCode(err)
	if code.Num >= 50000 {
		return code.Message
	}
	if e, ok := AsError(err); ok {
		return e.PublicMessage()
	}
	return code.Message
}
