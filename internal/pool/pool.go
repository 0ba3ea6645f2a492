// Package pool implements the per-endpoint LIFO connection pool: idle reuse,
// a blocking cap on total connections per endpoint, idle reaping, and
// dynamic endpoint discovery for storage servers learned from the tracker.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/fdfsgo/fdfs-client/internal/ferrors"
	"github.com/fdfsgo/fdfs-client/internal/transport"
)

// DialFunc opens a new connection to addr. Production code passes
// transport.Dial; tests substitute a fake.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (*transport.Connection, error)

// Config configures a Pool.
type Config struct {
	Addrs          []string
	MaxConns       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	Dial           DialFunc

	// Pooling enables connection reuse. When false the Pool is a plain
	// dialer: Get always opens a fresh connection and Put closes it.
	Pooling bool
}

// Pool manages reusable connections to a set of servers, with a hard cap of
// MaxConns live connections per endpoint enforced by blocking Get calls
// rather than unconditionally dialing past the cap.
type Pool struct {
	maxConns       int
	connectTimeout time.Duration
	idleTimeout    time.Duration
	dial           DialFunc
	pooling        bool

	mu        sync.RWMutex
	endpoints map[string]*endpoint
	closed    bool
}

// endpoint holds the idle/in-flight state for one server address.
type endpoint struct {
	addr string

	mu        sync.Mutex
	idle      []*transport.Connection
	total     int
	waiters   []chan struct{}
	lastClean time.Time
}

// New constructs a Pool. Addrs may be empty; endpoints are created lazily
// the first time Get is called for an address not yet seen.
func New(cfg Config) *Pool {
	if cfg.Dial == nil {
		cfg.Dial = transport.Dial
	}
	p := &Pool{
		maxConns:       cfg.MaxConns,
		connectTimeout: cfg.ConnectTimeout,
		idleTimeout:    cfg.IdleTimeout,
		dial:           cfg.Dial,
		pooling:        cfg.Pooling,
		endpoints:      make(map[string]*endpoint),
	}
	for _, addr := range cfg.Addrs {
		p.endpoints[addr] = newEndpoint(addr)
	}
	return p
}

func newEndpoint(addr string) *endpoint {
	return &endpoint{addr: addr, lastClean: time.Now()}
}

func (p *Pool) endpointFor(addr string) *endpoint {
	p.mu.RLock()
	ep, ok := p.endpoints[addr]
	p.mu.RUnlock()
	if ok {
		return ep
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ep, ok := p.endpoints[addr]; ok {
		return ep
	}
	ep = newEndpoint(addr)
	p.endpoints[addr] = ep
	return ep
}

// Get returns an idle connection to addr if one is healthy and available,
// dials a new one if the endpoint is under its cap, or blocks until a
// connection is released or ctx is done if the endpoint is at its cap.
func (p *Pool) Get(ctx context.Context, addr string) (*transport.Connection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ferrors.New(ferrors.KindClientClosed, "connection pool is closed")
	}

	if !p.pooling {
		return p.dial(ctx, addr, p.connectTimeout)
	}

	ep := p.endpointFor(addr)

	for {
		p.mu.RLock()
		closed = p.closed
		p.mu.RUnlock()
		if closed {
			return nil, ferrors.New(ferrors.KindClientClosed, "connection pool is closed")
		}

		ep.mu.Lock()
		for len(ep.idle) > 0 {
			conn := ep.idle[len(ep.idle)-1]
			ep.idle = ep.idle[:len(ep.idle)-1]
			if conn.IsAlive() {
				ep.mu.Unlock()
				return conn, nil
			}
			conn.Close()
			ep.total--
		}

		if ep.total < p.maxConns {
			ep.total++
			ep.mu.Unlock()

			conn, err := p.dial(ctx, addr, p.connectTimeout)
			if err != nil {
				ep.mu.Lock()
				ep.total--
				ep.mu.Unlock()
				return nil, err
			}
			return conn, nil
		}

		// At capacity: wait for a Put (or Close) to signal, or for ctx to end.
		wait := make(chan struct{})
		ep.waiters = append(ep.waiters, wait)
		ep.mu.Unlock()

		select {
		case <-wait:
			// loop around and retry the idle/dial path
		case <-ctx.Done():
			return nil, ferrors.Wrap(ferrors.KindCancelled, ctx.Err(), "waiting for a pooled connection").WithEndpoint(addr)
		}
	}
}

// Put returns conn to its endpoint's idle queue, or closes it if the pool
// is closed, the endpoint is unknown, or the connection has been idle too
// long. Exactly one blocked waiter (if any) is woken per Put.
func (p *Pool) Put(conn *transport.Connection) error {
	if conn == nil {
		return nil
	}
	if !p.pooling {
		return conn.Close()
	}

	p.mu.RLock()
	closed := p.closed
	ep, ok := p.endpoints[conn.Addr()]
	p.mu.RUnlock()

	if closed || !ok {
		return conn.Close()
	}

	if time.Since(conn.LastUsed()) > p.idleTimeout {
		ep.mu.Lock()
		ep.total--
		p.wakeWaiterLocked(ep)
		ep.mu.Unlock()
		return conn.Close()
	}

	ep.mu.Lock()
	ep.idle = append(ep.idle, conn)
	if time.Since(ep.lastClean) > p.idleTimeout {
		p.reapLocked(ep)
	}
	p.wakeWaiterLocked(ep)
	ep.mu.Unlock()
	return nil
}

// wakeWaiterLocked signals one blocked Get call, if any, that it should
// retry. ep.mu must be held by the caller.
func (p *Pool) wakeWaiterLocked(ep *endpoint) {
	if len(ep.waiters) == 0 {
		return
	}
	w := ep.waiters[0]
	ep.waiters = ep.waiters[1:]
	close(w)
}

// Discard closes conn and releases its capacity slot without returning it
// to the idle queue. The client uses it for connections whose operation was
// cancelled, since their protocol state is unknown.
func (p *Pool) Discard(conn *transport.Connection) error {
	if conn == nil {
		return nil
	}
	if !p.pooling {
		return conn.Close()
	}
	p.mu.RLock()
	ep, ok := p.endpoints[conn.Addr()]
	p.mu.RUnlock()

	err := conn.Close()
	if ok {
		ep.mu.Lock()
		ep.total--
		p.wakeWaiterLocked(ep)
		ep.mu.Unlock()
	}
	return err
}

// reapLocked drops idle connections that are dead or have sat idle past
// idleTimeout. ep.mu must be held by the caller.
func (p *Pool) reapLocked(ep *endpoint) {
	now := time.Now()
	kept := ep.idle[:0]
	for _, conn := range ep.idle {
		if now.Sub(conn.LastUsed()) > p.idleTimeout || !conn.IsAlive() {
			conn.Close()
			ep.total--
		} else {
			kept = append(kept, conn)
		}
	}
	ep.idle = kept
	ep.lastClean = now
}

// AddAddr registers a new endpoint discovered at runtime (e.g. a storage
// server returned by a tracker query). A no-op if addr is already known.
func (p *Pool) AddAddr(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.endpoints[addr]; ok {
		return
	}
	p.endpoints[addr] = newEndpoint(addr)
}

// EndpointStats reports, per known endpoint address, how many connections
// are currently idle and how many are checked out ("in flight").
type EndpointStats struct {
	Idle     int
	InFlight int
}

// Stats snapshots per-endpoint connection counts, for metrics export.
func (p *Pool) Stats() map[string]EndpointStats {
	p.mu.RLock()
	endpoints := make([]*endpoint, 0, len(p.endpoints))
	addrs := make([]string, 0, len(p.endpoints))
	for addr, ep := range p.endpoints {
		endpoints = append(endpoints, ep)
		addrs = append(addrs, addr)
	}
	p.mu.RUnlock()

	stats := make(map[string]EndpointStats, len(endpoints))
	for i, ep := range endpoints {
		ep.mu.Lock()
		idle := len(ep.idle)
		total := ep.total
		ep.mu.Unlock()
		stats[addrs[i]] = EndpointStats{Idle: idle, InFlight: total - idle}
	}
	return stats
}

// Reap runs idle-connection cleanup across all endpoints. Intended to be
// called periodically from a background goroutine owned by the client.
func (p *Pool) Reap() {
	p.mu.RLock()
	endpoints := make([]*endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		endpoints = append(endpoints, ep)
	}
	p.mu.RUnlock()

	for _, ep := range endpoints {
		ep.mu.Lock()
		p.reapLocked(ep)
		ep.mu.Unlock()
	}
}

// Close shuts the pool down: further Get calls fail immediately, all idle
// connections are closed, and any Get calls currently blocked waiting for
// capacity are woken so they can observe the pool is closed and return.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	endpoints := make([]*endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		endpoints = append(endpoints, ep)
	}
	p.mu.Unlock()

	for _, ep := range endpoints {
		ep.mu.Lock()
		for _, conn := range ep.idle {
			conn.Close()
			ep.total--
		}
		ep.idle = nil
		for _, w := range ep.waiters {
			close(w)
		}
		ep.waiters = nil
		ep.mu.Unlock()
	}
	return nil
}
