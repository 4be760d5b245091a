package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the category of an engine error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindMalformedPayload Kind = "malformed_payload"
	KindNotFound         Kind = "not_found"
	KindStore            Kind = "store"
)

// Base error values for errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNotFound         = errors.New("not found")
	ErrStore            = errors.New("store error")
	ErrTimeout          = errors.New("store timeout")
)

// Error is the single structured error type returned by the engine.
type Error struct {
	Kind    Kind
	Op      string // operação que falhou, ex: "ensure_grant"
	Message string // mensagem exposta ao cliente
	Err     error
	Timeout bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is against the base error values.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrMalformedPayload:
		return e.Kind == KindMalformedPayload
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrStore:
		return e.Kind == KindStore
	case ErrTimeout:
		return e.Kind == KindStore && e.Timeout
	}
	return false
}

// Retryable reports whether the caller may safely repeat the request.
func (e *Error) Retryable() bool {
	return e.Kind == KindStore
}

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func MalformedPayload(op string, err error) *Error {
	return &Error{Kind: KindMalformedPayload, Op: op, Message: "payload inválido", Err: err}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Message: "erro ao acessar o banco", Err: err}
}

func Timeout(op string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Message: "tempo esgotado ao acessar o banco", Err: err, Timeout: true}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err is a retryable engine error.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable()
}
