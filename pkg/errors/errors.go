package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is an API error: a stable machine code, the HTTP status it maps to and a message
// safe to show clients. The wrapped cause is kept for logs only.
type Error struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Details []FieldError `json:"details,omitempty"`
	Err     error        `json:"-"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code, so clones and wrapped copies of a
// predefined error satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrServiceDisabled    = New("SERVICE_DISABLED", http.StatusServiceUnavailable, "service disabled")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrUnsupportedFormat  = New("UNSUPPORTED_FORMAT", http.StatusBadRequest, "unsupported export format")
)

// WrapAs returns a copy of kind carrying cause and, when non-empty, message. Validator
// failures in cause become field details.
func WrapAs(kind *Error, cause error, message string) *Error {
	out := Clone(kind, message)
	out.Err = cause
	var fields validator.ValidationErrors
	if errors.As(cause, &fields) {
		out.Details = make([]FieldError, 0, len(fields))
		for _, f := range fields {
			out.Details = append(out.Details, FieldError{Field: jsonPath(f.Namespace()), Rule: f.Tag()})
		}
	}
	return out
}

// FromError normalises any error into an *Error. Unknown causes become INTERNAL_ERROR
// with the generic message, so driver text never reaches clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapAs(ErrInternal, err, "")
}

// HasCode reports whether err carries the code of target.
func HasCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	return FromError(err).Code == target.Code
}

// Clone returns a detached copy of err, optionally with a new message.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = nil
	clone.Err = nil
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// jsonPath turns "EnrollRequest.StudentID" into "student_id".
func jsonPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	var b strings.Builder
	for i, r := range namespace {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && namespace[i-1] >= 'a' && namespace[i-1] <= 'z'
			nextLower := i+1 < len(namespace) && namespace[i+1] >= 'a' && namespace[i+1] <= 'z'
			if i > 0 && namespace[i-1] != '.' && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
