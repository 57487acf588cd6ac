package domain

import "errors"

// ErrorType is the semantic category of an error.
type ErrorType int

const (
	ErrorTypeValidation     ErrorType = iota // missing payload field, wrong media type (400)
	ErrorTypeNotFound                        // missing meeting, tag, report, object (404)
	ErrorTypeConflict                        // concurrent write collided (409)
	ErrorTypeExternal                        // probe, Zoom API or object store failure (502)
	ErrorTypePartialFailure                  // a multi-step write stopped halfway (500)
	ErrorTypeInternal                        // anything else (500)
)

// DomainError carries a semantic type alongside the message.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of err, Internal when untyped.
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err is a NotFound domain error.
func IsNotFound(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypeNotFound
}

func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewExternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeExternal, Message: message, Err: errors.Join(err...)}
}

func NewPartialFailureError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypePartialFailure, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}
