package response

import (
	"encoding/json"
	"net/http"
)

// WriteJSON 写入 JSON 响应.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess 以 200 写入成功响应.
func WriteSuccess[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusOK, OK(data))
}

// WriteCreated 以 201 写入成功响应.
func WriteCreated[T any](w http.ResponseWriter, data T, message string) error {
	return WriteJSON(w, http.StatusCreated, OKWithMessage(data, message))
}

// WriteError 写入错误响应，状态码取自错误码.
func WriteError(w http.ResponseWriter, err error) error {
	return WriteJSON(w, ExtractCode(err).HTTPStatus, FailWithError(err))
}
