package fdfs

import (
	"bytes"
	"context"

	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// downloadFile fetches length bytes of fileID starting at offset (length 0
// meaning to the end of the file), routed via queryFetch since this is a
// read and the tracker's fetch routing already picks the best replica.
func (c *Client) downloadFile(ctx context.Context, fileID string, offset, length int64) ([]byte, error) {
	groupName, remoteFilename, err := splitFileID(fileID)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = c.withRetry(ctx, "download", fileID, func(ctx context.Context, attempt int) error {
		d, err := c.downloadOnce(ctx, groupName, remoteFilename, offset, length)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) downloadOnce(ctx context.Context, groupName, remoteFilename string, offset, length int64) ([]byte, error) {
	storageServer, err := c.queryFetch(ctx, groupName, remoteFilename)
	if err != nil {
		return nil, err
	}

	conn, err := c.storagePool.Get(ctx, storageServer.Addr())
	if err != nil {
		return nil, err
	}
	defer release(ctx, c.storagePool, conn)

	var buf bytes.Buffer
	buf.Write(wire.EncodeInt64(offset))
	buf.Write(wire.EncodeInt64(length))
	buf.Write(wire.PadString(groupName, wire.GroupNameMaxLen))
	buf.WriteString(remoteFilename)

	if err := c.sendRequest(ctx, conn, wire.CmdStorageDownloadFile, buf.Bytes()); err != nil {
		return nil, err
	}

	respBody, err := c.readResponse(ctx, conn)
	if err != nil {
		return nil, err
	}
	if respBody == nil {
		return []byte{}, nil
	}
	return respBody, nil
}

// downloadToFile downloads fileID and writes it to localFilename, creating
// parent directories as needed.
func (c *Client) downloadToFile(ctx context.Context, fileID, localFilename string) error {
	data, err := c.downloadFile(ctx, fileID, 0, 0)
	if err != nil {
		return err
	}
	return writeFileContent(localFilename, data)
}
