package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ValidationMessage is returned when an inbound payload is rejected.
	ValidationMessage = "Payload inválido"
	// ClassificationMessage is returned when the sentiment classifier fails.
	ClassificationMessage = "Falha na análise de sentimento"
	// CompletionMessage is returned when the chat completion provider fails.
	CompletionMessage = "Falha ao chamar assistente"
	// UnauthorizedMessage never carries detail about which check failed.
	UnauthorizedMessage = "Não autorizado"
)

// Kind classifies an AppError for callers that branch on the failure stage.
type Kind string

const (
	KindInternal                  Kind = "internal"
	KindValidation                Kind = "validation"
	KindAuthentication            Kind = "authentication"
	KindClassificationUnavailable Kind = "classification_unavailable"
	KindCompletionUnavailable     Kind = "completion_unavailable"
	KindStorage                   Kind = "storage"
)

// FieldError describes a single rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
	// Details is rendered next to Message in the JSON error body.
	Details any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindInternal,
	}
}

// Validation builds a 400 error listing every rejected field.
func Validation(fields []FieldError) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%d invalid field(s)", len(fields)),
		Status:  http.StatusBadRequest,
		Message: ValidationMessage,
		Kind:    KindValidation,
		Details: fields,
	}
}

// Unauthorized builds a 401 error with a generic message.
func Unauthorized(err error) *AppError {
	return &AppError{
		Err:     err,
		Status:  http.StatusUnauthorized,
		Message: UnauthorizedMessage,
		Kind:    KindAuthentication,
	}
}

// ClassificationUnavailable wraps a sentiment classifier failure.
func ClassificationUnavailable(err error) *AppError {
	return &AppError{
		Err:     err,
		Status:  http.StatusBadGateway,
		Message: ClassificationMessage,
		Kind:    KindClassificationUnavailable,
		Details: errDetail(err),
	}
}

// CompletionUnavailable wraps a chat completion failure.
func CompletionUnavailable(err error) *AppError {
	return &AppError{
		Err:     err,
		Status:  http.StatusBadGateway,
		Message: CompletionMessage,
		Kind:    KindCompletionUnavailable,
		Details: errDetail(err),
	}
}

// KindOf returns the Kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

func errDetail(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
