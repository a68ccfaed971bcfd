package credentials

import (
	"code.issuerext.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error          = errorFlag("credentials: error")
	ErrInvalid     = errorFlag("credentials: invalid Credential")
	ErrDuplicateId = errorFlag("credentials: duplicate Credential identifier")
	ErrCacheRead   = errorFlag("credentials: cache read failed")
	noError        = errorFlag("")
)

// Error implements the error interface.
func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if Error == self || noError == self {
		return nil
	} else {
		return Error
	}
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}

// newFlagError returns a utils.RaisedErr{} flagged with flag.
func newFlagError(flag errorFlag, msg string, args ...any) error {
	return utils.NewError(1, flag, msg, args...)
}

// wrapFlagError returns a utils.RaisedErr{} flagged with flag that wraps cause.
func wrapFlagError(cause error, flag errorFlag, msg string, args ...any) error {
	return utils.WrapError(cause, 1, flag, msg, args...)
}
