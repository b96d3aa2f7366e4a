package common

// APIResponse 通用响应结构，用于封装成功或失败结果。
type APIResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// 业务状态码
const (
	CodeSuccess = 0

	CodeInvalidRequest     = 1000 // 请求参数错误
	CodeNotFound           = 1003 // 资源不存在
	CodeInternalError      = 1005 // 内部错误
	CodeServiceUnavailable = 1006 // 服务不可用

	CodeNoCredentials        = 3010 // 未配置 API Key
	CodeAllCredentialsFailed = 3011 // 所有 API Key 均失败
	CodeRequestCanceled      = 3012 // 请求被取消
	CodeRequestTimeout       = 3013 // 请求超时
)

// SuccessResponse 构造成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{Success: true, Code: CodeSuccess, Data: data}
}

// ErrorResponse 构造错误响应
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{Success: false, Code: code, Message: message}
}
