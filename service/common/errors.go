package common

import (
	"errors"
	"fmt"
	"syscall"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// Listener setup errors. All of them are fatal and abort the startup.
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrSocketCreateFailed = errors.New("socket create failed")
	ErrBindFailed         = errors.New("bind failed")
	ErrListenFailed       = errors.New("listen failed")
)

// ErrAcceptFailed terminates the accept loop and with it the whole service
var ErrAcceptFailed = errors.New("accept failed")

// Connection errors. They only terminate the connection they occurred on.
var (
	ErrReadError  = errors.New("read error")
	ErrWriteError = errors.New("write error")
)

// ErrUnformattable is returned by the address formatter for peer addresses
// that are neither IPv4 nor IPv6
var ErrUnformattable = errors.New("unformattable address")

// --------------------------------------------------------------------------
// Socket Error
// --------------------------------------------------------------------------

// SocketError attaches the numeric OS error code to one of the error kinds above.
//
// errors.Is matches both the kind (e.g. ErrBindFailed) and the underlying cause
// (e.g. syscall.EADDRINUSE).
type SocketError struct {
	// Kind is one of the Err* sentinels of this package
	Kind error
	// Code is the OS error number, 0 if the cause carries none
	Code int
	// Err is the underlying cause, may be nil
	Err error
}

// NewSocketError creates a SocketError and extracts the errno from err (if any)
func NewSocketError(kind error, err error) *SocketError {
	return &SocketError{
		Kind: kind,
		Code: ErrnoOf(err),
		Err:  err,
	}
}

func (e *SocketError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v (errno=%d): %v", e.Kind, e.Code, e.Err)
}

func (e *SocketError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ErrnoOf returns the numeric OS error code wrapped in err or 0
func ErrnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
