package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound 没有待反馈的异常数据
	ErrNotFound = errors.New("pending exception not found")
	// ErrConflict 记录已被并发处理
	ErrConflict = errors.New("exception resolved concurrently")
)

// ValidationError 参数校验错误
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError 指定测站、时间的待反馈记录不存在（或已处理）
type NotFoundError struct {
	StationCode   string
	ExceptionTime time.Time
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("测站 %s 在 %s 没有待反馈的异常数据", e.StationCode, FormatTime(e.ExceptionTime))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError 条件更新未命中任何行
type ConflictError struct {
	StationCode   string
	ExceptionTime time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("未找到匹配的异常记录进行更新，测站=%s, 时间=%s", e.StationCode, FormatTime(e.ExceptionTime))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageError 重试耗尽后的数据库错误
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
