package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid         ErrorCode = "invalid"
	ErrorForbidden       ErrorCode = "forbidden"
	ErrorNotFound        ErrorCode = "not_found"
	ErrorConflict        ErrorCode = "conflict"
	ErrorUnauthorized    ErrorCode = "unauthorized"
	ErrorTooManyRequests ErrorCode = "too_many_requests"
	ErrorInternal        ErrorCode = "internal"
)

// CodeFailure distinguishes why a submitted passcode was rejected.
type CodeFailure string

const (
	CodeTooManyAttempts CodeFailure = "too_many_attempts"
	CodeNotFound        CodeFailure = "no_code_found"
	CodeExpired         CodeFailure = "expired"
	CodeMismatch        CodeFailure = "mismatch"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Kind    CodeFailure // set only for passcode rejections
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewInternalError(msg string) error  { return &ServiceError{Code: ErrorInternal, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewTooManyRequestsError(msg string) error {
	return &ServiceError{Code: ErrorTooManyRequests, Message: msg}
}

func NewCodeRejectedError(kind CodeFailure) error {
	msgs := map[CodeFailure]string{
		CodeTooManyAttempts: "too many failed attempts; request a new code",
		CodeNotFound:        "no active code; request a new one",
		CodeExpired:         "code expired; request a new one",
		CodeMismatch:        "incorrect code",
	}
	return &ServiceError{Code: ErrorUnauthorized, Message: msgs[kind], Kind: kind}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
