package utils

import (
	"errors"
	"fmt"
	"path"
	"runtime"
)

// RaisedErr is an error that remembers where it was raised.
// Every error returned by this code base is a RaisedErr.
//
// Packages declare a private errorFlag string type and a set of flag constants.
// Assigning a Flag lets callers classify failures with errors.Is, whatever the Cause.
type RaisedErr struct {
	// Flag classifies the error, eg provision.ErrNoToken.
	Flag error

	// Cause is the lower level error, if any.
	Cause error

	// Msg describes what failed.
	Msg string

	// Filename is "<package dir>/<file>" of the code that raised the error.
	Filename string

	// Line is the line in Filename that raised the error.
	Line int
}

// Error implements the error interface.
func (self RaisedErr) Error() string {
	if nil == self.Cause {
		return fmt.Sprintf("%s: %s (%s:%d)", path.Dir(self.Filename), self.Msg, self.Filename, self.Line)
	}
	return fmt.Sprintf("%s: %s (%s:%d)\n  %v", path.Dir(self.Filename), self.Msg, self.Filename, self.Line, self.Cause)
}

// Unwrap exposes Flag and Cause to errors.Is & errors.As.
func (self RaisedErr) Unwrap() []error {
	rv := make([]error, 0, 2)
	if nil != self.Flag {
		rv = append(rv, self.Flag)
	}
	if nil != self.Cause {
		rv = append(rv, self.Cause)
	}
	return rv
}

// NewError returns a RaisedErr holding the file & line of its caller.
//
// skip controls caller frame resolution: use 0 when calling NewError directly,
// 1 when calling it from a package level newError helper...
func NewError(skip int, flag error, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Msg: msg}
	addCallerFileLine(skip, &err)
	return err
}

// WrapError returns a RaisedErr with cause, holding the file & line of its caller.
// It returns nil if cause is nil.
//
// skip has the same meaning as in NewError.
func WrapError(cause error, skip int, flag error, msg string, args ...any) error {
	if nil == cause {
		return nil
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Cause: cause, Msg: msg}
	addCallerFileLine(skip, &err)
	return err
}

// FirstFlag returns the first flag in candidates that err wraps, or nil.
func FirstFlag(err error, candidates ...error) error {
	if nil == err {
		return nil
	}
	for _, flag := range candidates {
		if errors.Is(err, flag) {
			return flag
		}
	}
	return nil
}

func addCallerFileLine(skip int, err *RaisedErr) {
	_, filename, line, ok := runtime.Caller(2 + skip)
	if ok {
		dirname, basename := path.Split(filename)
		err.Filename = path.Join(path.Base(dirname), basename)
		err.Line = line
	}
}
