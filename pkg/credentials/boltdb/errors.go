package boltdb

import (
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/credentials"
)

// newError returns a utils.RaisedErr{} flagged as credentials.Error.
func newError(msg string, args ...any) error {
	return utils.NewError(1, credentials.Error, msg, args...)
}

// wrapError returns a utils.RaisedErr{} flagged as credentials.Error.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, credentials.Error, msg, args...)
}

// wrapReadError returns a utils.RaisedErr{} flagged as credentials.ErrCacheRead.
func wrapReadError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, credentials.ErrCacheRead, msg, args...)
}

// wrapInvalidError returns a utils.RaisedErr{} flagged as credentials.ErrInvalid.
func wrapInvalidError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, credentials.ErrInvalid, msg, args...)
}
