package response

import "net/http"

// Code 业务错误码.
type Code struct {
	Num        int    // 数字错误码
	Message    string // 默认错误消息
	HTTPStatus int    // 对应的 HTTP 状态码
}

// Error 实现 error 接口.
func (c Code) Error() string {
	return c.Message
}

// WithMessage 返回带自定义消息的副本.
func (c Code) WithMessage(msg string) Code {
	c.Message = msg
	return c
}

// Is 判断是否为同一错误码.
func (c Code) Is(target Code) bool {
	return c.Num == target.Num
}

// 预定义错误码.
//
//   - 0: 成功
//   - 1xxxx: 通用错误
//   - 3xxxx: 请求参数错误
//   - 4xxxx: 资源错误
//   - 5xxxx: 服务器内部错误
//   - 6xxxx: 依赖服务错误
var (
	CodeSuccess = Code{0, "成功", http.StatusOK}

	CodeUnknown  = Code{10000, "未知错误", http.StatusInternalServerError}
	CodeCanceled = Code{10001, "请求已取消", http.StatusRequestTimeout}
	CodeTimeout  = Code{10002, "请求超时", http.StatusGatewayTimeout}

	CodeInvalidParam     = Code{30001, "参数无效", http.StatusBadRequest}
	CodeValidationFailed = Code{30003, "参数验证失败", http.StatusBadRequest}

	CodeNotFound = Code{40001, "资源不存在", http.StatusNotFound}
	// CodeConflict 当前状态不允许该操作，按接口约定返回 400
	CodeConflict = Code{40003, "当前状态不允许该操作", http.StatusBadRequest}

	CodeInternal      = Code{50001, "服务器内部错误", http.StatusInternalServerError}
	CodeDatabaseError = Code{50003, "数据库错误", http.StatusInternalServerError}

	CodeServiceUnavailable = Code{60001, "服务不可用", http.StatusServiceUnavailable}
	CodeBrokerError        = Code{60003, "消息通道错误", http.StatusBadGateway}
)
