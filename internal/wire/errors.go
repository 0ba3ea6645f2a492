package wire

import "errors"

// Errors returned by the codec itself, independent of FastDFS status codes.
var (
	ErrShortHeader   = errors.New("wire: frame shorter than header length")
	ErrInvalidFileID = errors.New("wire: invalid file id")
	ErrShortBody     = errors.New("wire: response body shorter than expected")
)
