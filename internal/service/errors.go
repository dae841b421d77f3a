package service

import (
	"errors"
	"strings"
)

// ── 通用业务错误 ──

var (
	ErrForbidden = errors.New("需要管理员权限")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field string
	Msg   string
}

// ValidationError 输入校验错误，携带逐字段信息
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Msg)
	}
	return e.Msg + " (" + strings.Join(parts, "; ") + ")"
}

// Add 追加字段错误
func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Msg: msg})
}

// OrNil 没有字段错误时返回 nil
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidationError 判断并提取 ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
