package service

import "net/http"

// Result 是业务层的统一返回：带 HTTP 语义的状态码加上负载或提示信息。
// REST handler 和 WebSocket 网关都直接按 Status 翻译，不再做二次判断。
type Result struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(msg string, data any) Result {
	return Result{Status: http.StatusOK, Message: msg, Data: data}
}

func created(msg string, data any) Result {
	return Result{Status: http.StatusCreated, Message: msg, Data: data}
}

func badRequest(msg string) Result {
	return Result{Status: http.StatusBadRequest, Message: msg}
}

func unauthorized(msg string) Result {
	return Result{Status: http.StatusUnauthorized, Message: msg}
}

func forbidden(msg string) Result {
	return Result{Status: http.StatusForbidden, Message: msg}
}

func notFound(msg string) Result {
	return Result{Status: http.StatusNotFound, Message: msg}
}

func internal(msg string) Result {
	return Result{Status: http.StatusInternalServerError, Message: msg}
}
