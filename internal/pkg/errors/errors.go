package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalid             = errors.New("invalid")
	ErrConflict            = errors.New("conflict")
	ErrTooMany             = errors.New("too many requests")
	ErrInternal            = errors.New("internal")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrCorruptFile         = errors.New("corrupt file")
	ErrGenerationInvalid   = errors.New("generated output failed validation")
	ErrInsufficientContent = errors.New("project has no processed content")
	ErrTimeout             = errors.New("operation timed out")
	ErrTransientStorage    = errors.New("transient storage error")
	ErrAIUnavailable       = errors.New("ai provider unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStorage)
}
