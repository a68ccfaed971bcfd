package provision

import (
	"code.issuerext.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error                = errorFlag("provision: error")
	ErrNoToken           = errorFlag("provision: no token for credential")
	ErrEncryptionFailed  = errorFlag("provision: remote encryption failed")
	ErrMalformedResponse = errorFlag("provision: malformed encryption response")
	noError              = errorFlag("")
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

// Reason returns the failure flag carried by err, or nil.
func Reason(err error) error {
	return utils.FirstFlag(err, ErrNoToken, ErrEncryptionFailed, ErrMalformedResponse)
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(flag error, msg string, args ...any) error {
	return utils.NewError(1, flag, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, flag error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, flag, msg, args...)
}
