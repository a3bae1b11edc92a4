package app

import (
	"encoding/json"

	"tasktimer/internal/domain"
)

// Result is the tagged success/error value returned by every use case.
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
	Code    domain.ErrorKind
}

// Ok wraps data in a successful Result.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail builds a failed Result with a user-facing message.
func Fail[T any](code domain.ErrorKind, msg string) Result[T] {
	return Result[T]{Error: msg, Code: code}
}

// MarshalJSON emits {"success":true,"data":...} or
// {"success":false,"error":...,"code":...}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    T    `json:"data"`
		}{true, r.Data})
	}
	return json.Marshal(struct {
		Success bool             `json:"success"`
		Error   string           `json:"error"`
		Code    domain.ErrorKind `json:"code"`
	}{false, r.Error, r.Code})
}
