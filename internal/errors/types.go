package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeProtocol     ErrorType = "protocol"
	ErrorTypePolicy       ErrorType = "policy"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeTemplate     ErrorType = "template"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeInternal     ErrorType = "internal"
)

// EngineError is a structured error type with context.
type EngineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *EngineError) WithComponent(component string) *EngineError {
	e.Component = component

	return e
}

// NewProtocolError creates an error for malformed request input.
func NewProtocolError(code, message string, cause error) *EngineError {
	return &EngineError{
		Type:        ErrorTypeProtocol,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewPolicyError creates an error for requests the engine refuses to serve.
func NewPolicyError(code, message string) *EngineError {
	return &EngineError{
		Type:        ErrorTypePolicy,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *EngineError {
	return &EngineError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewTemplateError creates a template syntax error.
func NewTemplateError(code, message string) *EngineError {
	return &EngineError{
		Type:        ErrorTypeTemplate,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewPreconditionError creates an error for a violated startup precondition.
// These are the only fatal errors in the engine.
func NewPreconditionError(code, message string) *EngineError {
	return &EngineError{
		Type:        ErrorTypePrecondition,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *EngineError {
	return &EngineError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *EngineError {
	return &EngineError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Recoverable
	}

	return false
}

// IsType reports whether err is an EngineError of the given type.
func IsType(err error, t ErrorType) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Type == t
	}

	return false
}

// IsPrecondition checks if an error is a startup precondition failure.
func IsPrecondition(err error) bool {
	return IsType(err, ErrorTypePrecondition)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen by its category. Recoverable
// engine errors are warnings; everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ee *EngineError
	if !errors.As(err, &ee) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	if ee.Recoverable {
		h.logger.Warn(ctx, ee, "Request error",
			"type", ee.Type,
			"code", ee.Code,
			"component", ee.Component)
		return
	}

	h.logger.Error(ctx, ee, "Error occurred",
		"type", ee.Type,
		"code", ee.Code,
		"component", ee.Component)
}

// Common error codes.
const (
	ErrCodeMalformedQuery  = "ERR_MALFORMED_QUERY"
	ErrCodeUnsupported     = "ERR_UNSUPPORTED"
	ErrCodeReadFailed      = "ERR_READ_FAILED"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodePageUnreadable  = "ERR_PAGE_UNREADABLE"
	ErrCodeTemplateSyntax  = "ERR_TEMPLATE_SYNTAX"
	ErrCodeInvalidPoolSize = "ERR_INVALID_POOL_SIZE"
	ErrCodeQueueFull       = "ERR_QUEUE_FULL"
	ErrCodePoolClosed      = "ERR_POOL_CLOSED"
	ErrCodeHookPanic       = "ERR_HOOK_PANIC"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeInternalError   = "ERR_INTERNAL"
)
