package artwork

import (
	"code.issuerext.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error         = errorFlag("artwork: error")
	ErrInvalidURL = errorFlag("artwork: invalid asset URL")
	ErrFetch      = errorFlag("artwork: fetch failed")
	ErrTooLarge   = errorFlag("artwork: asset too large")
	ErrDecode     = errorFlag("artwork: not a supported image")
	ErrNotBundled = errorFlag("artwork: asset not bundled")
	noError       = errorFlag("")
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
