package gfx

import (
	"errors"
	"fmt"
)

// ErrKind is the closed set of failure categories surfaced by both backends.
// Every error returned by this package wraps one of these kinds together
// with a description of the sub-operation that failed.
type ErrKind int

const (
	InitializationFailed ErrKind = iota
	DeviceCreationFailed
	BufferCreationFailed
	TextureCreationFailed
	CommandBufferCreationFailed
	ShaderCompilation
	MappingFailed
	SynchronizationFailed
	InvalidHandle
)

func (k ErrKind) String() string {
	switch k {
	case InitializationFailed:
		return "initialization failed"
	case DeviceCreationFailed:
		return "device creation failed"
	case BufferCreationFailed:
		return "buffer creation failed"
	case TextureCreationFailed:
		return "texture creation failed"
	case CommandBufferCreationFailed:
		return "command buffer creation failed"
	case ShaderCompilation:
		return "shader compilation failed"
	case MappingFailed:
		return "memory mapping failed"
	case SynchronizationFailed:
		return "synchronization failed"
	case InvalidHandle:
		return "invalid handle"
	}
	return fmt.Sprintf("ErrKind(%d)", int(k))
}

// Error carries an ErrKind plus the human readable diagnostic for the
// sub-operation that failed. It wraps the underlying driver error when one
// exists so callers can still use errors.Is/errors.As on it.
type Error struct {
	Kind ErrKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is lets errors.Is match two *Error values by kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ErrorKind extracts the ErrKind from err. The second return is false when
// err did not originate from this package.
func ErrorKind(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrKind, err error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: kind, msg: msg, err: err}
}
