package fdfs

import (
	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// Sentinel errors for use with errors.Is. Errors from configuration
// validation, the client lifecycle, the pool, routing and the wire protocol
// match one of these through their Kind (see internal/ferrors), even though
// the concrete value carries additional context - endpoint, file ID,
// attempt number - that differs per call. Local file I/O errors (UploadFile,
// DownloadToFile) and Load's errors wrap the underlying error instead.
var (
	ErrConfig            = ferrors.New(ferrors.KindConfig, "")
	ErrClientClosed      = ferrors.New(ferrors.KindClientClosed, "")
	ErrInvalidArgument   = ferrors.New(ferrors.KindInvalidArgument, "")
	ErrInvalidFileID     = ferrors.New(ferrors.KindInvalidArgument, "")
	ErrFileNotFound      = ferrors.New(ferrors.KindFileNotFound, "")
	ErrFileAlreadyExists = ferrors.New(ferrors.KindFileAlreadyExists, "")
	ErrInsufficientSpace = ferrors.New(ferrors.KindInsufficientSpace, "")
	ErrNoStorageServer   = ferrors.New(ferrors.KindNoStorageServer, "")
	ErrConnect           = ferrors.New(ferrors.KindConnect, "")
	ErrTimeout           = ferrors.New(ferrors.KindTimeout, "")
	ErrNetwork           = ferrors.New(ferrors.KindNetwork, "")
	ErrInvalidResponse   = ferrors.New(ferrors.KindProtocol, "")
	ErrCancelled         = ferrors.New(ferrors.KindCancelled, "")
)

// splitFileID parses "group/remote_filename", mapping a malformed ID to the
// invalid-argument error kind the rest of the taxonomy uses.
func splitFileID(fileID string) (group, remoteFilename string, err error) {
	group, remoteFilename, err = wire.SplitFileID(fileID)
	if err != nil {
		return "", "", ferrors.Wrap(ferrors.KindInvalidArgument, err, "invalid file id").WithFileID(fileID)
	}
	return group, remoteFilename, nil
}
