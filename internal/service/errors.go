package service

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound   = errors.New("room not found or has expired")
	ErrRoomExpired    = errors.New("room has expired")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomBusy       = errors.New("room is busy, please retry")
	ErrCodeAllocation = errors.New("failed to generate unique room code")
	ErrInternalServer = errors.New("internal server error")
)

// ValidationError 表示请求参数不合法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// 错误分类，出现在 HTTP 错误响应的 kind 字段中
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindGone       = "gone"
	KindForbidden  = "forbidden"
	KindConflict   = "conflict"
	KindAllocation = "allocation"
	KindInternal   = "internal"
)

// ErrorKind 返回错误所属的分类
func ErrorKind(err error) string {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return KindValidation
	case errors.Is(err, ErrRoomNotFound):
		return KindNotFound
	case errors.Is(err, ErrRoomExpired):
		return KindGone
	case errors.Is(err, ErrRoomFull):
		return KindForbidden
	case errors.Is(err, ErrRoomBusy):
		return KindConflict
	case errors.Is(err, ErrCodeAllocation):
		return KindAllocation
	default:
		return KindInternal
	}
}
