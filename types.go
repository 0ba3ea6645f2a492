package fdfs

import "github.com/fdfsgo/fdfs-client/internal/wire"

// FileInfo is the parsed result of GetFileInfo: size, creation time,
// checksum, source storage server, and file kind.
type FileInfo = wire.FileInfo

// FileKind distinguishes regular, appender, and slave files.
type FileKind = wire.FileKind

const (
	FileKindRegular  = wire.FileKindRegular
	FileKindAppender = wire.FileKindAppender
	FileKindSlave    = wire.FileKindSlave
)

// MetadataFlag controls how SetMetadata combines with a file's existing metadata.
type MetadataFlag = wire.MetadataFlag

const (
	// MetadataOverwrite replaces all existing metadata.
	MetadataOverwrite = wire.MetadataOverwrite
	// MetadataMerge updates/adds the given keys, leaving others untouched.
	MetadataMerge = wire.MetadataMerge
)
