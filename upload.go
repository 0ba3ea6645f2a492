package fdfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// uploadFile reads localFilename off disk and delegates to uploadBuffer.
func (c *Client) uploadFile(ctx context.Context, localFilename string, metadata map[string]string, isAppender bool) (string, error) {
	data, err := readFileContent(localFilename)
	if err != nil {
		return "", fmt.Errorf("read local file: %w", err)
	}
	if len(data) == 0 {
		return "", ferrors.New(ferrors.KindInvalidArgument, "local file is empty: "+localFilename)
	}
	return c.uploadBuffer(ctx, data, wire.FileExtName(localFilename), metadata, isAppender)
}

// uploadBuffer uploads data to a tracker-chosen storage server and, if
// metadata is non-empty, sets it on the newly created file. A failure
// setting metadata is reported to the caller rather than swallowed: the
// file now exists under the returned ID even though this call failed, so
// the error wraps that ID for the caller to clean up or retry against.
func (c *Client) uploadBuffer(ctx context.Context, data []byte, fileExtName string, metadata map[string]string, isAppender bool) (string, error) {
	var fileID string
	err := c.withRetry(ctx, "upload", "", func(ctx context.Context, attempt int) error {
		id, err := c.uploadOnce(ctx, data, fileExtName, isAppender)
		if err != nil {
			return err
		}
		fileID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(metadata) > 0 {
		if err := c.setMetadata(ctx, fileID, metadata, MetadataOverwrite); err != nil {
			return fileID, fmt.Errorf("file %s uploaded but set metadata failed: %w", fileID, err)
		}
	}
	return fileID, nil
}

func (c *Client) uploadOnce(ctx context.Context, data []byte, fileExtName string, isAppender bool) (string, error) {
	storageServer, err := c.queryStore(ctx, "")
	if err != nil {
		return "", err
	}

	conn, err := c.storagePool.Get(ctx, storageServer.Addr())
	if err != nil {
		return "", err
	}
	defer release(ctx, c.storagePool, conn)

	cmd := byte(wire.CmdStorageUploadFile)
	if isAppender {
		cmd = wire.CmdStorageUploadAppenderFile
	}

	var buf bytes.Buffer
	buf.WriteByte(storageServer.StorePathIndex)
	buf.Write(wire.PadString(fileExtName, wire.FileExtNameMaxLen))
	buf.Write(data)

	if err := c.sendRequest(ctx, conn, cmd, buf.Bytes()); err != nil {
		return "", err
	}

	respBody, err := c.readResponse(ctx, conn)
	if err != nil {
		return "", err
	}
	if len(respBody) < wire.GroupNameMaxLen {
		return "", ErrInvalidResponse
	}

	groupName := wire.UnpadString(respBody[:wire.GroupNameMaxLen])
	remoteFilename := string(respBody[wire.GroupNameMaxLen:])
	return wire.JoinFileID(groupName, remoteFilename), nil
}

// uploadSlaveFile uploads data associated with an existing master file
// (e.g. a thumbnail), routed to the storage server that holds the master.
func (c *Client) uploadSlaveFile(ctx context.Context, masterFileID, prefixName, fileExtName string, data []byte, metadata map[string]string) (string, error) {
	groupName, masterFilename, err := splitFileID(masterFileID)
	if err != nil {
		return "", err
	}
	if len(prefixName) > wire.FilePrefixMaxLen {
		prefixName = prefixName[:wire.FilePrefixMaxLen]
	}

	var fileID string
	err = c.withRetry(ctx, "upload_slave", masterFileID, func(ctx context.Context, attempt int) error {
		id, err := c.uploadSlaveOnce(ctx, groupName, masterFilename, prefixName, fileExtName, data)
		if err != nil {
			return err
		}
		fileID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(metadata) > 0 {
		if err := c.setMetadata(ctx, fileID, metadata, MetadataOverwrite); err != nil {
			return fileID, fmt.Errorf("slave file %s uploaded but set metadata failed: %w", fileID, err)
		}
	}
	return fileID, nil
}

func (c *Client) uploadSlaveOnce(ctx context.Context, groupName, masterFilename, prefixName, fileExtName string, data []byte) (string, error) {
	storageServer, err := c.queryUpdate(ctx, groupName, masterFilename)
	if err != nil {
		return "", err
	}

	conn, err := c.storagePool.Get(ctx, storageServer.Addr())
	if err != nil {
		return "", err
	}
	defer release(ctx, c.storagePool, conn)

	var buf bytes.Buffer
	buf.Write(wire.EncodeInt64(int64(len(masterFilename))))
	buf.Write(wire.EncodeInt64(int64(len(data))))
	buf.Write(wire.PadString(prefixName, wire.FilePrefixMaxLen))
	buf.Write(wire.PadString(fileExtName, wire.FileExtNameMaxLen))
	buf.WriteString(masterFilename)
	buf.Write(data)

	if err := c.sendRequest(ctx, conn, wire.CmdStorageUploadSlaveFile, buf.Bytes()); err != nil {
		return "", err
	}

	respBody, err := c.readResponse(ctx, conn)
	if err != nil {
		return "", err
	}
	if len(respBody) < wire.GroupNameMaxLen {
		return "", ErrInvalidResponse
	}

	respGroupName := wire.UnpadString(respBody[:wire.GroupNameMaxLen])
	remoteFilename := string(respBody[wire.GroupNameMaxLen:])
	return wire.JoinFileID(respGroupName, remoteFilename), nil
}
