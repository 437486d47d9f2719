package httpapi

// Result 统一响应结构
// - code: 2000 成功；-1 请求/处理失败；5030 历史存储不可用
// - type: 'success' | 'error'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess     = 2000
	ResultError       = -1
	ResultUnavailable = 5030
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// Unavailable 依赖的存储未启用
func Unavailable(message string) Result[any] {
	return Result[any]{Code: ResultUnavailable, Type: "error", Message: message, Result: nil}
}
