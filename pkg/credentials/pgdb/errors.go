package pgdb

import (
	"code.issuerext.org/golang/internal/utils"
	"code.issuerext.org/golang/pkg/credentials"
)

// wrapError returns a utils.RaisedErr{} flagged as credentials.Error.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, credentials.Error, msg, args...)
}

// wrapFlagError returns a utils.RaisedErr{} flagged with flag.
func wrapFlagError(cause error, flag error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, flag, msg, args...)
}
