package engine

import (
	"errors"
	"fmt"
)

// Коды ошибок ядра; api мапит их в HTTP-статусы.
const (
	ErrCodeValidation     = "validation_error"
	ErrCodePrecondition   = "precondition_failed"
	ErrCodeNotFound       = "not_found"
	ErrCodeInfrastructure = "infrastructure_error"
)

// ValidationError — некорректный вход (тип фильтра не совпал с колонкой,
// limit/count вне диапазона и т.п.). Отсекается до обращения к хранилищу.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func verr(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PreconditionError — запрос корректен, но состояние не позволяет
// (bulk-create по таблице без колонок).
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return "precondition: " + e.Message }

// InfrastructureError — хранилище недоступно/запрос упал. Ядро не ретраит;
// решать вызывающему.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func infra(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}

// IsValidation / IsPrecondition / IsInfrastructure — удобные проверки для api.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

func IsPrecondition(err error) (*PreconditionError, bool) {
	var pe *PreconditionError
	ok := errors.As(err, &pe)
	return pe, ok
}

func IsInfrastructure(err error) (*InfrastructureError, bool) {
	var ie *InfrastructureError
	ok := errors.As(err, &ie)
	return ie, ok
}
