package service

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/booking"
)

var (
	// ErrNotFound — объект не существует или недоступен текущему пользователю.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated — пользователь не определён или отключён.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Причины конфликтов.
const (
	ReasonExpertBusy         = "expert_busy"
	ReasonClientBusy         = "client_busy"
	ReasonNoWeeklyCoverage   = "no_weekly_coverage"
	ReasonDateException      = "date_exception"
	ReasonRecurringException = "recurring_exception"
	ReasonAlreadyInState     = "already_in_state"
	ReasonInvalidTransition  = "invalid_transition"
)

// ValidationError — ошибки по полям; ничего не записано.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = message
}

// orNil возвращает nil, если ошибок нет.
func (v *ValidationError) orNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

func invalid(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// ConflictError — операция нарушает инвариант расписания или статуса.
type ConflictError struct {
	Reason  string
	Message string
}

func (c *ConflictError) Error() string {
	return c.Message
}

func conflict(reason, message string) *ConflictError {
	return &ConflictError{Reason: reason, Message: message}
}

// ErrorKind — стабильная метка ошибки для логов.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var cErr *ConflictError
	if errors.As(err, &cErr) {
		return "conflict"
	}
	return "unexpected"
}

// notFound переводит gorm.ErrRecordNotFound в ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// transitionError переводит ошибки автомата статусов в ошибки сервиса.
func transitionError(err error) error {
	switch {
	case errors.Is(err, booking.ErrAlreadyInState):
		return conflict(ReasonAlreadyInState, "appointment is already in this status")
	case errors.Is(err, booking.ErrInvalidTransition):
		return conflict(ReasonInvalidTransition, err.Error())
	case errors.Is(err, booking.ErrWrongParty):
		return ErrForbidden
	}
	return err
}
