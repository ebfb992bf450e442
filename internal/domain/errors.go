package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки оборачивают их через %w,
// вызывающий код проверяет категорию через errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("permission denied")
	ErrConsistency = errors.New("consistency violation")
)

func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, entity, id)
}

func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrPermission, reason)
}

func Inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}
