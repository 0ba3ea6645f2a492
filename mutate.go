package fdfs

import (
	"bytes"
	"context"

	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// deleteFile deletes fileID. Routed via queryUpdate: deletion is a mutation
// and must reach the server the tracker currently treats as authoritative
// for writes.
func (c *Client) deleteFile(ctx context.Context, fileID string) error {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return err
	}

	return c.withRetry(ctx, "delete", fileID, func(ctx context.Context, attempt int) error {
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
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageDeleteFile, buf.Bytes()); err != nil {
			return err
		}
		_, err = c.readResponse(ctx, conn)
		return err
	})
}

// appendFile appends data to the end of an appender file.
func (c *Client) appendFile(ctx context.Context, fileID string, data []byte) error {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return err
	}

	return c.withRetry(ctx, "append", fileID, func(ctx context.Context, attempt int) error {
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
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)
		buf.Write(data)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageAppendFile, buf.Bytes()); err != nil {
			return err
		}
		_, err = c.readResponse(ctx, conn)
		return err
	})
}

// modifyFile overwrites an appender file's content starting at offset.
func (c *Client) modifyFile(ctx context.Context, fileID string, offset int64, data []byte) error {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return err
	}

	return c.withRetry(ctx, "modify", fileID, func(ctx context.Context, attempt int) error {
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
		buf.Write(wire.EncodeInt64(offset))
		buf.Write(wire.EncodeInt64(int64(len(data))))
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)
		buf.Write(data)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageModifyFile, buf.Bytes()); err != nil {
			return err
		}
		_, err = c.readResponse(ctx, conn)
		return err
	})
}

// truncateFile truncates (or zero-extends) an appender file to size.
func (c *Client) truncateFile(ctx context.Context, fileID string, size int64) error {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return err
	}

	return c.withRetry(ctx, "truncate", fileID, func(ctx context.Context, attempt int) error {
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
		buf.Write(wire.EncodeInt64(size))
		buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
		buf.WriteString(remoteFilename)

		if err := c.sendRequest(ctx, conn, wire.CmdStorageTruncateFile, buf.Bytes()); err != nil {
			return err
		}
		_, err = c.readResponse(ctx, conn)
		return err
	})
}
