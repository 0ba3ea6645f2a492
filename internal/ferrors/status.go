package ferrors

import (
	"errors"
	"fmt"
)

// FromStatus maps a FastDFS response status byte to a structured error.
// Status 0 means success and maps to nil.
func FromStatus(status byte) error {
	switch status {
	case 0:
		return nil
	case 2:
		return New(KindFileNotFound, "file not found")
	case 6:
		return New(KindFileAlreadyExists, "file already exists")
	case 22:
		return New(KindInvalidArgument, "invalid argument")
	case 28:
		return New(KindInsufficientSpace, "insufficient storage space")
	default:
		return New(KindProtocol, fmt.Sprintf("unexpected status code %d", status))
	}
}

// Retryable reports whether an operation that failed with err should be
// retried by the pipeline. Only failures plausibly caused by a transient
// network or server-availability condition are retryable; validation and
// terminal protocol errors are not.
func Retryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case KindNetwork, KindTimeout, KindConnect, KindNoStorageServer, KindProtocol:
		return true
	default:
		return false
	}
}
