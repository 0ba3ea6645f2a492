package fdfs

import (
	"bytes"
	"context"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/logger"
	"github.com/fdfsgo/fdfs-client/internal/transport"
	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// queryStore asks a tracker which storage server a new upload should go to.
// An empty groupName lets the tracker pick the group too.
func (c *Client) queryStore(ctx context.Context, groupName string) (wire.StorageServer, error) {
	conn, err := c.trackerPool.Get(ctx, c.nextTrackerAddr())
	if err != nil {
		return wire.StorageServer{}, err
	}
	defer release(ctx, c.trackerPool, conn)

	var cmd byte
	var body []byte
	if groupName == "" {
		cmd = wire.CmdTrackerQueryStoreWithoutGroupOne
	} else {
		cmd = wire.CmdTrackerQueryStoreWithGroupOne
		body = wire.PadString(groupName, wire.GroupNameMaxLen)
	}

	if err := c.sendRequest(ctx, conn, cmd, body); err != nil {
		return wire.StorageServer{}, err
	}

	respBody, err := c.readResponse(ctx, conn)
	if err != nil {
		return wire.StorageServer{}, err
	}
	if len(respBody) < wire.GroupNameMaxLen+wire.IPAddressSize+9 {
		return wire.StorageServer{}, ErrInvalidResponse
	}

	offset := wire.GroupNameMaxLen
	ipAddr := wire.UnpadString(respBody[offset : offset+wire.IPAddressSize])
	offset += wire.IPAddressSize
	port := int(wire.DecodeInt64(respBody[offset : offset+8]))
	offset += 8
	storePathIndex := respBody[offset]

	if ipAddr == "" || port == 0 {
		return wire.StorageServer{}, ferrors.New(ferrors.KindNoStorageServer, "tracker returned no storage server for store query")
	}

	storage := wire.StorageServer{IPAddr: ipAddr, Port: port, StorePathIndex: storePathIndex}
	c.log.Debug(logger.WithEndpoint(ctx, storage.Addr()), "tracker routed store request", "store_path_index", storePathIndex)
	return storage, nil
}

// queryFetch asks a tracker which storage server holds group/remoteFilename,
// for read operations (download, get metadata, get file info).
func (c *Client) queryFetch(ctx context.Context, group, remoteFilename string) (wire.StorageServer, error) {
	return c.queryRoute(ctx, wire.CmdTrackerQueryFetchOne, group, remoteFilename)
}

// queryUpdate asks a tracker which storage server holds group/remoteFilename,
// for write operations (delete, set metadata, append, modify, truncate).
// This is a distinct tracker command from queryFetch: mutating a file must
// go to the server the tracker currently considers authoritative for writes,
// which during resync windows can differ from the best server to read from.
func (c *Client) queryUpdate(ctx context.Context, group, remoteFilename string) (wire.StorageServer, error) {
	return c.queryRoute(ctx, wire.CmdTrackerQueryUpdate, group, remoteFilename)
}

func (c *Client) queryRoute(ctx context.Context, cmd byte, group, remoteFilename string) (wire.StorageServer, error) {
	conn, err := c.trackerPool.Get(ctx, c.nextTrackerAddr())
	if err != nil {
		return wire.StorageServer{}, err
	}
	defer release(ctx, c.trackerPool, conn)

	var buf bytes.Buffer
	buf.Write(wire.PadString(group, wire.GroupNameMaxLen))
	buf.WriteString(remoteFilename)

	if err := c.sendRequest(ctx, conn, cmd, buf.Bytes()); err != nil {
		return wire.StorageServer{}, err
	}

	respBody, err := c.readResponse(ctx, conn)
	if err != nil {
		return wire.StorageServer{}, err
	}
	if len(respBody) < wire.GroupNameMaxLen+wire.IPAddressSize+8 {
		return wire.StorageServer{}, ErrInvalidResponse
	}

	offset := wire.GroupNameMaxLen
	ipAddr := wire.UnpadString(respBody[offset : offset+wire.IPAddressSize])
	offset += wire.IPAddressSize
	port := int(wire.DecodeInt64(respBody[offset : offset+8]))

	if ipAddr == "" || port == 0 {
		return wire.StorageServer{}, ferrors.New(ferrors.KindNoStorageServer, "tracker returned no storage server for "+group+"/"+remoteFilename)
	}

	storage := wire.StorageServer{IPAddr: ipAddr, Port: port}
	c.log.Debug(logger.WithEndpoint(ctx, storage.Addr()), "tracker routed file request", "group", group)
	return storage, nil
}

// sendRequest writes a header + body to conn using the client's configured
// network timeout.
func (c *Client) sendRequest(ctx context.Context, conn *transport.Connection, cmd byte, body []byte) error {
	header := wire.EncodeHeader(int64(len(body)), cmd, 0)
	if err := conn.Send(ctx, header, c.config.NetworkTimeout); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return conn.Send(ctx, body, c.config.NetworkTimeout)
}

// readResponse reads a response header and, if status is success, its body.
// A non-zero status is translated into the matching ferrors.Error.
func (c *Client) readResponse(ctx context.Context, conn *transport.Connection) ([]byte, error) {
	headerBytes, err := conn.ReceiveFull(ctx, wire.HeaderLen, c.config.NetworkTimeout)
	if err != nil {
		return nil, err
	}
	header, err := wire.DecodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if header.Status != 0 {
		return nil, ferrors.FromStatus(header.Status)
	}
	if header.Length == 0 {
		return nil, nil
	}
	return conn.ReceiveFull(ctx, int(header.Length), c.config.NetworkTimeout)
}
