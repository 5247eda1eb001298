package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures of the monitor.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransientFetch covers timeouts, 5xx answers and network errors of the inventory API.
	KindTransientFetch
	// KindMalformedResponse is a 2xx answer whose body carries no usable quantity.
	KindMalformedResponse
	// KindPersistence means a store was unavailable or rejected a write.
	KindPersistence
	// KindDelivery is a failed hand-off to the presentation layer.
	KindDelivery
	KindNotFound
	KindUnauthorized
	KindInvalidArgument
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindTransientFetch:    "transient_fetch",
	KindMalformedResponse: "malformed_response",
	KindPersistence:       "persistence",
	KindDelivery:          "delivery",
	KindNotFound:          "not_found",
	KindUnauthorized:      "unauthorized",
	KindInvalidArgument:   "invalid_argument",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// SQLErrorMessage describes SQLite related failures.
	SQLErrorMessage = "sqlite operation failed"
	// NotFoundMessage describes a missing record.
	NotFoundMessage = "record not found"
	// FetchErrorMessage describes a failed inventory lookup.
	FetchErrorMessage = "inventory lookup failed"
	// MalformedMessage describes an unusable inventory payload.
	MalformedMessage = "inventory response malformed"
	// DeliveryErrorMessage describes a failed notification delivery.
	DeliveryErrorMessage = "notification delivery failed"
	// AccessDeniedMessage is returned to unauthorized callers.
	AccessDeniedMessage = "access denied"
)

// AppError wraps an underlying error with a kind, an HTTP status and a safe message.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
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

// Is reports whether the target matches the underlying error, or is an
// AppError of the same kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) && t.Err == nil {
		return t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound     = &AppError{Kind: KindNotFound, Status: http.StatusNotFound, Message: NotFoundMessage}
	ErrUnauthorized = &AppError{Kind: KindUnauthorized, Status: http.StatusForbidden, Message: AccessDeniedMessage}
)

// Transient marks err as a transient inventory failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return New(KindTransientFetch, err, http.StatusBadGateway, FetchErrorMessage)
}

// Malformed marks err as an unusable inventory answer.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return New(KindMalformedResponse, err, http.StatusBadGateway, MalformedMessage)
}

// Delivery marks err as a failed presentation hand-off.
func Delivery(err error) error {
	if err == nil {
		return nil
	}
	return New(KindDelivery, err, http.StatusBadGateway, DeliveryErrorMessage)
}

// InvalidArgument reports a caller mistake.
func InvalidArgument(format string, args ...any) error {
	return New(KindInvalidArgument, nil, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// NotFound reports a missing record with detail.
func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Errorf(format, args...), http.StatusNotFound, NotFoundMessage)
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsFetchFailure reports whether err means "quantity unknown this cycle".
func IsFetchFailure(err error) bool {
	k := KindOf(err)
	return k == KindTransientFetch || k == KindMalformedResponse
}

// StatusOf maps err to an HTTP status for the operator API.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
