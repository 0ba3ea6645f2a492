package transport

import (
	"net"
	"time"
)

// WrapForTest constructs a Connection around an already-established net.Conn,
// bypassing Dial. Exported for use by other internal packages' tests (e.g.
// pool) that need a Connection without a real FastDFS server to dial.
func WrapForTest(conn net.Conn, addr string) *Connection {
	return &Connection{conn: conn, addr: addr, lastUsed: time.Now()}
}
