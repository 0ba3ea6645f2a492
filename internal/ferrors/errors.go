// Package ferrors defines the client's structured error taxonomy: a Kind
// drawn from a fixed set, a human message, an optional wrapped cause, and
// context (endpoint, file ID, attempt) attached as the error travels up
// through routing, the pool, and the retry loop.
package ferrors

import "fmt"

// Kind categorizes a failure the way callers are expected to branch on it.
type Kind int

const (
	KindConfig Kind = iota
	KindClientClosed
	KindInvalidArgument
	KindFileNotFound
	KindFileAlreadyExists
	KindInsufficientSpace
	KindNoStorageServer
	KindConnect
	KindTimeout
	KindNetwork
	KindProtocol
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindClientClosed:
		return "client_closed"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindFileNotFound:
		return "file_not_found"
	case KindFileAlreadyExists:
		return "file_already_exists"
	case KindInsufficientSpace:
		return "insufficient_space"
	case KindNoStorageServer:
		return "no_storage_server"
	case KindConnect:
		return "connect"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned by every layer of the client.
type Error struct {
	Kind     Kind
	Message  string
	Cause    error
	Endpoint string
	FileID   string
	Attempt  int
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fdfs: %s: %s", e.Kind, e.Message)
	if e.Endpoint != "" {
		msg += fmt.Sprintf(" (endpoint %s)", e.Endpoint)
	}
	if e.FileID != "" {
		msg += fmt.Sprintf(" (file %s)", e.FileID)
	}
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports Kind equality so a plain sentinel built with New(kind, "") can
// be matched via errors.Is regardless of message, cause, or context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithEndpoint attaches the server address a failure occurred against.
func (e *Error) WithEndpoint(addr string) *Error {
	e.Endpoint = addr
	return e
}

// WithFileID attaches the file ID a failure occurred against.
func (e *Error) WithFileID(id string) *Error {
	e.FileID = id
	return e
}

// WithAttempt records which retry attempt produced this error.
func (e *Error) WithAttempt(n int) *Error {
	e.Attempt = n
	return e
}
