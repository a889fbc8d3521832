// Package response 定义 HTTP 接口的统一响应格式与业务错误码.
//
//	{
//	    "code": 0,
//	    "message": "成功",
//	    "data": { ... }
//	}
package response

// Response 统一响应体.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// OK 创建成功响应.
func OK[T any](data T) Response[T] {
	return Response[T]{Code: CodeSuccess.Num, Message: CodeSuccess.Message, Data: data}
}

// OKWithMessage 创建带自定义消息的成功响应.
func OKWithMessage[T any](data T, message string) Response[T] {
	return Response[T]{Code: CodeSuccess.Num, Message: message, Data: data}
}

// FailWithError 从错误创建失败响应.
func FailWithError(err error) Response[any] {
	return Response[any]{Code: ExtractCode(err).Num, Message: ExtractMessage(err)}
}

// IsSuccess 是否成功响应.
func (r Response[T]) IsSuccess() bool {
	return r.Code == CodeSuccess.Num
}
