// Package fdfs provides a Go client for the FastDFS distributed file
// system: binary tracker/storage protocol, connection pooling, retrying
// operation pipeline, and a small facade covering upload, download,
// delete, append/modify/truncate, and metadata operations.
//
// # Copyright (C) 2026 FastDFS Go Client Contributors
//
// FastDFS may be copied only under the terms of the GNU General
// Public License V3, which may be found in the FastDFS source kit.
package fdfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/logger"
	"github.com/fdfsgo/fdfs-client/internal/pool"
	"github.com/fdfsgo/fdfs-client/internal/transport"
)

// Client is a FastDFS client: a tracker connection pool, a storage
// connection pool shared across all discovered storage endpoints, and the
// operation pipeline built on top of them.
type Client struct {
	config      *ClientConfig
	trackerPool *pool.Pool
	storagePool *pool.Pool

	log     *logger.Logger
	metrics *Metrics
	tracer  trace.Tracer

	reapStop chan struct{}
	reapDone chan struct{}

	trackerIdx uint64

	mu     sync.RWMutex
	closed bool
}

// nextTrackerAddr picks the next tracker address in round-robin order, so
// repeated queries spread load across the whole tracker cluster instead of
// pinning to the first configured address.
func (c *Client) nextTrackerAddr() string {
	addrs := c.config.TrackerAddrs
	idx := atomic.AddUint64(&c.trackerIdx, 1)
	return addrs[int(idx-1)%len(addrs)]
}

// NewClient creates a FastDFS client from config. config is validated and
// defaulted (see ClientConfig); the returned Client owns both its tracker
// and storage connection pools until Close is called.
func NewClient(config *ClientConfig) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.applyDefaults()

	c := &Client{
		config:  config,
		log:     logger.Nop(),
		metrics: newMetrics(),
		tracer:  defaultTracer(),
	}

	c.trackerPool = pool.New(pool.Config{
		Addrs:          config.TrackerAddrs,
		MaxConns:       config.MaxConns,
		ConnectTimeout: config.ConnectTimeout,
		IdleTimeout:    config.IdleTimeout,
		Pooling:        config.EnablePool,
	})
	c.storagePool = pool.New(pool.Config{
		MaxConns:       config.MaxConns,
		ConnectTimeout: config.ConnectTimeout,
		IdleTimeout:    config.IdleTimeout,
		Pooling:        config.EnablePool,
	})

	c.reapStop = make(chan struct{})
	c.reapDone = make(chan struct{})
	go c.reapLoop()

	return c, nil
}

// reapLoop periodically sweeps idle connections out of both pools, the
// periodic alternative to purely opportunistic reaping on Put.
func (c *Client) reapLoop() {
	defer close(c.reapDone)
	ticker := time.NewTicker(c.config.IdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-c.reapStop:
			return
		case <-ticker.C:
			c.trackerPool.Reap()
			c.storagePool.Reap()
			c.metrics.observePoolStats("tracker", c.trackerPool.Stats())
			c.metrics.observePoolStats("storage", c.storagePool.Stats())
		}
	}
}

// UploadFile uploads a file from the local filesystem to FastDFS and
// returns its file ID.
func (c *Client) UploadFile(ctx context.Context, localFilename string, metadata map[string]string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	return c.uploadFile(ctx, localFilename, metadata, false)
}

// UploadBuffer uploads data held in memory and returns the new file ID.
func (c *Client) UploadBuffer(ctx context.Context, data []byte, fileExtName string, metadata map[string]string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	return c.uploadBuffer(ctx, data, fileExtName, metadata, false)
}

// UploadAppenderFile uploads a file from disk as an appender file, which
// AppendFile/ModifyFile/TruncateFile can later mutate.
func (c *Client) UploadAppenderFile(ctx context.Context, localFilename string, metadata map[string]string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	return c.uploadFile(ctx, localFilename, metadata, true)
}

// UploadAppenderBuffer is UploadAppenderFile for in-memory data.
func (c *Client) UploadAppenderBuffer(ctx context.Context, data []byte, fileExtName string, metadata map[string]string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	return c.uploadBuffer(ctx, data, fileExtName, metadata, true)
}

// UploadSlaveFile uploads a file associated with an existing master file,
// e.g. a thumbnail of an uploaded image, and returns the slave file's ID.
func (c *Client) UploadSlaveFile(ctx context.Context, masterFileID, prefixName, fileExtName string, data []byte, metadata map[string]string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	return c.uploadSlaveFile(ctx, masterFileID, prefixName, fileExtName, data, metadata)
}

// DownloadFile downloads a file's entire contents.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.downloadFile(ctx, fileID, 0, 0)
}

// DownloadFileRange downloads length bytes starting at offset. length of 0
// means to the end of the file.
func (c *Client) DownloadFileRange(ctx context.Context, fileID string, offset, length int64) ([]byte, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 {
		return nil, ferrors.New(ferrors.KindInvalidArgument, "offset and length must be non-negative").WithFileID(fileID)
	}
	return c.downloadFile(ctx, fileID, offset, length)
}

// DownloadToFile downloads a file and writes it to the local filesystem,
// creating parent directories as needed.
func (c *Client) DownloadToFile(ctx context.Context, fileID, localFilename string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.downloadToFile(ctx, fileID, localFilename)
}

// DeleteFile deletes a file from FastDFS.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.deleteFile(ctx, fileID)
}

// AppendFile appends data to the end of an appender file.
func (c *Client) AppendFile(ctx context.Context, fileID string, data []byte) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.appendFile(ctx, fileID, data)
}

// ModifyFile overwrites an appender file's content starting at offset.
func (c *Client) ModifyFile(ctx context.Context, fileID string, offset int64, data []byte) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if offset < 0 {
		return ferrors.New(ferrors.KindInvalidArgument, "offset must be non-negative").WithFileID(fileID)
	}
	return c.modifyFile(ctx, fileID, offset, data)
}

// TruncateFile truncates (or extends with zero bytes) an appender file to size.
func (c *Client) TruncateFile(ctx context.Context, fileID string, size int64) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if size < 0 {
		return ferrors.New(ferrors.KindInvalidArgument, "size must be non-negative").WithFileID(fileID)
	}
	return c.truncateFile(ctx, fileID, size)
}

// SetMetadata sets a file's metadata, either replacing it entirely
// (MetadataOverwrite) or merging into the existing set (MetadataMerge).
func (c *Client) SetMetadata(ctx context.Context, fileID string, metadata map[string]string, flag MetadataFlag) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return c.setMetadata(ctx, fileID, metadata, flag)
}

// GetMetadata retrieves a file's metadata.
func (c *Client) GetMetadata(ctx context.Context, fileID string) (map[string]string, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.getMetadata(ctx, fileID)
}

// GetFileInfo retrieves a file's size, creation time, CRC32, source
// storage server, and kind (regular/appender/slave).
func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	return c.getFileInfo(ctx, fileID)
}

// FileExists reports whether fileID currently exists in the cluster.
func (c *Client) FileExists(ctx context.Context, fileID string) (bool, error) {
	if err := c.checkClosed(); err != nil {
		return false, err
	}
	_, err := c.getFileInfo(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close shuts the client down: the background reaper stops, and both
// connection pools are closed, closing every pooled connection. Safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.reapStop)
	<-c.reapDone

	var errs []error
	if err := c.trackerPool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tracker pool: %w", err))
	}
	if err := c.storagePool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage pool: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnableLogging replaces the default discard logger with a JSON slog
// logger writing to w (os.Stderr when nil) at the given level. Intended to
// be called right after NewClient, before operations are issued.
func (c *Client) EnableLogging(level slog.Level, w *os.File) {
	c.mu.Lock()
	c.log = logger.New(level, w)
	c.mu.Unlock()
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ferrors.New(ferrors.KindClientClosed, "client is closed")
	}
	return nil
}

// release returns conn to p for reuse, unless ctx was cancelled during the
// operation that used it - per the cancellation contract, a connection
// whose in-flight request was interrupted is discarded rather than pooled,
// since its protocol state at the point of cancellation is unknown.
func release(ctx context.Context, p *pool.Pool, conn *transport.Connection) {
	if conn == nil {
		return
	}
	if ctx.Err() != nil {
		p.Discard(conn)
		return
	}
	p.Put(conn)
}
