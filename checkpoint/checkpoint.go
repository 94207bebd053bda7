// Package checkpoint decorates errors with the file and line they passed through,
// which gives a trace of where a failure travelled without a full stacktrace.
// Both the decorating error and the wrapped cause stay reachable by errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// site is the source location at which a checkpoint was created.
type site struct {
	ok   bool
	file string
	line int
}

func callerSite(skip int) site {
	_, file, line, ok := runtime.Caller(skip + 1)
	return site{ok: ok, file: filepath.Base(file), line: line}
}

func (s site) String() string {
	if !s.ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", s.file, s.line)
}

// passThrough reports errors which have to reach the caller unchanged.
// io.EOF must be returned as io.EOF directly, see https://github.com/golang/go/issues/39155
func passThrough(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// From marks the current location on err.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil || passThrough(err) {
		return err
	}

	return &checkpoint{
		cause: err,
		at:    callerSite(1),
	}
}

// Wrap marks the current location on cause and describes it by err, typically a sentinel:
//  var ErrReadSector = errors.New("could not read sector")
//
//  func read() error {
//  	return checkpoint.Wrap(device.Read(), ErrReadSector)
//  }
// errors.Is matches both ErrReadSector and whatever device.Read returned.
// Returns nil if cause is nil, so it can be used directly on results.
func Wrap(cause, err error) error {
	if cause == nil || cause == io.EOF {
		return cause
	}

	return &checkpoint{
		err:   err,
		cause: cause,
		at:    callerSite(1),
	}
}

// Errorf creates a new cause from the format and marks it with err.
// Unlike Wrap it never returns nil.
func Errorf(err error, format string, args ...interface{}) error {
	return &checkpoint{
		err:   err,
		cause: fmt.Errorf(format, args...),
		at:    callerSite(1),
	}
}

type checkpoint struct {
	err   error
	cause error
	at    site
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(c.at.String())
	if c.err != nil {
		b.WriteString(": ")
		b.WriteString(c.err.Error())
	}

	cause := c.cause.Error()
	if _, ok := c.cause.(*checkpoint); ok {
		b.WriteString("\n")
	} else {
		b.WriteString("\n\t")
		cause = strings.ReplaceAll(cause, "\n", "\n\t")
	}
	b.WriteString(cause)
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.err != nil && errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.err != nil && errors.As(c.err, target)
}
