package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrConfig
	ErrUnknown
)

// ServiceError is returned for bad input and wiring mistakes. Failures
// talking to the site never surface as errors from this package.
type ServiceError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ServiceError {
	return &ServiceError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *ServiceError {
	e := NewError(errorType, message)
	e.Cause = cause
	return e
}

func (e *ServiceError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

// SafeExecute runs fn and turns a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
			log.Error("Recovered: %v", err)
		}
	}()

	return fn()
}
