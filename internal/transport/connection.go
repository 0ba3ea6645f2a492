// Package transport implements the framed TCP connection used to talk to a
// single tracker or storage endpoint: dial, send, receive-exact, liveness
// check, and close, all deadline-aware and context-cancellable.
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/fdfsgo/fdfs-client/internal/bufpool"
	"github.com/fdfsgo/fdfs-client/internal/ferrors"
)

// Connection wraps a net.Conn to one FastDFS server (tracker or storage)
// with the fixed-size read/write primitives the wire codec needs.
type Connection struct {
	conn     net.Conn
	addr     string
	lastUsed time.Time
	mu       sync.Mutex
}

// Dial establishes a new TCP connection to addr, honoring both ctx and
// timeout; whichever fires first aborts the dial.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Connection, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindConnect, err, "dial failed").WithEndpoint(addr)
	}
	return &Connection{conn: conn, addr: addr, lastUsed: time.Now()}, nil
}

// deadline returns the earlier of ctx's deadline (if any) and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// Send writes data in full, respecting both ctx and timeout.
func (c *Connection) Send(ctx context.Context, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ferrors.Wrap(ferrors.KindCancelled, err, "send cancelled").WithEndpoint(c.addr)
	}

	if timeout > 0 {
		c.conn.SetWriteDeadline(deadline(ctx, timeout))
	}

	n, err := c.conn.Write(data)
	if err != nil {
		return classifyNetErr(err, c.addr, "write")
	}
	if n != len(data) {
		return ferrors.New(ferrors.KindNetwork, "incomplete write").WithEndpoint(c.addr)
	}

	c.lastUsed = time.Now()
	return nil
}

// ReceiveFull reads exactly size bytes, respecting both ctx and timeout.
func (c *Connection) ReceiveFull(ctx context.Context, size int, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.KindCancelled, err, "receive cancelled").WithEndpoint(c.addr)
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(deadline(ctx, timeout))
	}

	buf := make([]byte, size)
	offset := 0
	for offset < size {
		n, err := c.conn.Read(buf[offset:])
		if err != nil {
			return nil, classifyNetErr(err, c.addr, "read")
		}
		offset += n
	}

	c.lastUsed = time.Now()
	return buf, nil
}

// Close terminates the connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IsAlive performs a short non-blocking-ish read to heuristically detect a
// dead connection before handing it out of the pool. A read that times out
// means the peer is simply quiet, i.e. alive; EOF or any other error means
// the connection is dead.
func (c *Connection) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return false
	}

	probe := bufpool.Get(1)
	defer bufpool.Put(probe)
	c.conn.SetReadDeadline(time.Now().Add(1 * time.Millisecond))
	_, err := c.conn.Read(probe[:1])
	c.conn.SetReadDeadline(time.Time{})

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	// err == nil means the peer sent bytes nobody asked for - the framing is
	// desynced and the connection is no safer to reuse than a dead one.
	return false
}

// LastUsed reports when Send or ReceiveFull last completed successfully.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Addr returns the remote endpoint this connection was dialed to.
func (c *Connection) Addr() string {
	return c.addr
}

func classifyNetErr(err error, addr, op string) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return ferrors.Wrap(ferrors.KindTimeout, err, op+" timed out").WithEndpoint(addr)
	}
	return ferrors.Wrap(ferrors.KindNetwork, err, op+" failed").WithEndpoint(addr)
}
