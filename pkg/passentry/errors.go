package passentry

import (
	"code.issuerext.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error        = errorFlag("passentry: error")
	ErrInvalid   = errorFlag("passentry: invalid PassEntry")
	ErrPanic     = errorFlag("passentry: build panicked")
	ErrCancelled = errorFlag("passentry: build cancelled")
	noError      = errorFlag("")
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

func newError(flag errorFlag, msg string, args ...any) error {
	return utils.NewError(1, flag, msg, args...)
}

func wrapError(cause error, flag errorFlag, msg string, args ...any) error {
	return utils.WrapError(cause, 1, flag, msg, args...)
}
