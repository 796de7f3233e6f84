package order

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound 表示订单不存在。
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotCancellable 表示订单已处于终态，无法撤销。
	ErrNotCancellable = errors.New("order not cancellable")
)

// ValidationError 表示下单请求未通过校验，校验失败不会产生任何订单。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: 校验失败 [%s]: %s", e.Field, e.Reason)
}

func validationErr(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation 判断错误是否为请求校验错误。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
