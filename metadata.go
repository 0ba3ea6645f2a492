package fdfs

import (
	"bytes"
	"context"
	"time"

	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// setMetadata sets fileID's metadata, either replacing it entirely
// (MetadataOverwrite) or merging the given keys into what's already there
// (MetadataMerge). Routed via queryUpdate: this is a mutation.
func (c *Client) setMetadata(ctx context.Context, fileID string, metadata map[string]string, flag MetadataFlag) error {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return err
	}

	encoded := wire.EncodeMetadata(metadata)

	return c.withRetry(ctx, "set_metadata", fileID, func(ctx context.Context, attempt int) error {
		storageServer, err := c.queryUpdate(ctx, groupName, remoteFilename)
		if err != nil {
			return err
		}

		conn, err := c.storagePool.Get(ctx, storageServer.Addr())
		if err != nil {
			return err
		}
		defer release(ctx, c.storagePool, conn)

		var buf bytes.Buffer
		buf.Write(wire.EncodeInt64(int64(len(remoteFilename))))
		buf.Write(wire.EncodeInt64(int64(len(encoded))))
		buf.WriteByte(byte(flag))
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)
		buf.Write(encoded)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageSetMetadata, buf.Bytes()); err != nil {
			return err
		}
		_, err = c.readResponse(ctx, conn)
		return err
	})
}

// getMetadata retrieves fileID's metadata, routed via queryFetch since this
// is a read.
func (c *Client) getMetadata(ctx context.Context, fileID string) (map[string]string, error) {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return nil, err
	}

	var metadata map[string]string
	err = c.withRetry(ctx, "get_metadata", fileID, func(ctx context.Context, attempt int) error {
		storageServer, err := c.queryFetch(ctx, groupName, remoteFilename)
		if err != nil {
			return err
		}

		conn, err := c.storagePool.Get(ctx, storageServer.Addr())
		if err != nil {
			return err
		}
		defer release(ctx, c.storagePool, conn)

		var buf bytes.Buffer
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageGetMetadata, buf.Bytes()); err != nil {
			return err
		}
		respBody, err := c.readResponse(ctx, conn)
		if err != nil {
			return err
		}
		metadata = wire.DecodeMetadata(respBody)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

// fileInfoBodyLen is size(8) + create_ts(8) + crc32(4) + source_ip(16), the
// fixed portion of a QueryFileInfo response; a trailing kind byte follows it
// on servers new enough to report file kind.
const fileInfoBodyLen = 8 + 8 + 4 + wire.IPAddressSize

// getFileInfo retrieves fileID's size, creation time, CRC32, source storage
// server, and kind. Routed via queryFetch since this is a read.
func (c *Client) getFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return nil, err
	}

	var info FileInfo
	err = c.withRetry(ctx, "get_file_info", fileID, func(ctx context.Context, attempt int) error {
		storageServer, err := c.queryFetch(ctx, groupName, remoteFilename)
		if err != nil {
			return err
		}

		conn, err := c.storagePool.Get(ctx, storageServer.Addr())
		if err != nil {
			return err
		}
		defer release(ctx, c.storagePool, conn)

		var buf bytes.Buffer
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageQueryFileInfo, buf.Bytes()); err != nil {
			return err
		}
		respBody, err := c.readResponse(ctx, conn)
		if err != nil {
			return err
		}
		if len(respBody) < fileInfoBodyLen {
			return ErrInvalidResponse
		}

		offset := 0
		fileSize := wire.DecodeInt64(respBody[offset : offset+8])
		offset += 8
		createTS := wire.DecodeInt64(respBody[offset : offset+8])
		offset += 8
		crc32 := uint32(wire.DecodeInt32(respBody[offset : offset+4]))
		offset += 4
		ipAddr := wire.UnpadString(respBody[offset : offset+wire.IPAddressSize])

		kind := wire.FileKindRegular
		if len(respBody) > fileInfoBodyLen {
			kind = wire.FileKind(respBody[fileInfoBodyLen])
		}

		info = FileInfo{
			FileSize:     fileSize,
			CreateTime:   time.Unix(createTS, 0),
			CRC32:        crc32,
			SourceIPAddr: ipAddr,
			Kind:         kind,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}
