// Package pool implements a small bounded cache of reusable database
// connections with fork detection.
package pool

import (
	"context"
	"fmt"
	"os"

	"github.com/pgstash/pgstash/pkg/config"
)

// Conn is one pooled connection handle. Exactly one owner holds a Conn at a
// time: either the caller that acquired it or the pool's queue.
type Conn interface {
	// IsAlive probes the underlying connection and reports whether it is
	// still usable. This is a blocking network call.
	IsAlive(ctx context.Context) bool

	// IsActive reports whether the handle is usable enough to re-admit
	// into the pool. Local check, never blocks.
	IsActive() bool

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Connector establishes new connections from a Config. It is the seam to
// the network driver (see pkg/pgdriver).
type Connector interface {
	Connect(ctx context.Context, cfg *config.Config) (Conn, error)
}

// ConnectError reports a failed connection attempt during Acquire. The
// attempt is never retried; the driver's error is available via Unwrap.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %q: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Pool caches up to Config.Capacity connections in FIFO order: Release
// appends at the back, Acquire reuses from the front, and over-capacity
// eviction trims from the front (oldest first, regardless of how recently a
// handle was actually used).
//
// A Pool does no locking of its own. It assumes a single logical owner
// drives Acquire and Release; callers sharing one Pool across goroutines
// must synchronize externally.
//
// Cached handles are process-local. If the pool is touched after a fork,
// every cached handle is dropped before anything else happens (see
// checkFork).
type Pool struct {
	cfg       *config.Config
	connector Connector

	// conns is the queue of idle handles, front at index 0.
	conns []Conn

	// pid identifies the process that last touched the pool.
	pid int
}

// New returns an empty Pool that creates connections from cfg via
// connector. The Config is held by reference; later setter calls affect
// connections created afterwards.
func New(cfg *config.Config, connector Connector) *Pool {
	return &Pool{
		cfg:       cfg,
		connector: connector,
		pid:       os.Getpid(),
	}
}

// Acquire returns one live connection. The oldest cached handle that still
// passes its liveness probe is reused; handles that fail the probe are
// closed and dropped, which is normal pool hygiene and not an error. When
// the cache runs dry a new connection is dialed with the current Config.
// A failed dial is not retried: the driver's error is returned wrapped in
// *ConnectError and the caller gets no handle.
//
// The returned connection is owned exclusively by the caller until it is
// handed back via Release. Newly dialed connections are not enqueued.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	p.checkFork()

	for len(p.conns) > 0 {
		conn := p.conns[0]
		p.conns = p.conns[1:]
		if conn.IsAlive(ctx) {
			return conn, nil
		}
		_ = conn.Close(ctx)
	}

	conn, err := p.connector.Connect(ctx, p.cfg)
	if err != nil {
		return nil, &ConnectError{Address: p.cfg.Address(), Err: err}
	}
	return conn, nil
}

// Release hands a connection back to the pool. A handle that no longer
// reports itself active is closed and dropped instead of re-admitted.
// After re-admission the queue is trimmed from the front until it is within
// the Config's capacity bound, closing each evicted handle. Release never
// fails.
func (p *Pool) Release(ctx context.Context, conn Conn) {
	if conn == nil {
		return
	}

	if !conn.IsActive() {
		_ = conn.Close(ctx)
		return
	}
	p.conns = append(p.conns, conn)

	for len(p.conns) > p.cfg.Capacity() {
		evicted := p.conns[0]
		p.conns = p.conns[1:]
		_ = evicted.Close(ctx)
	}
}

// Len reports the number of idle cached connections.
func (p *Pool) Len() int { return len(p.conns) }

// checkFork compares the current process id against the one that last
// touched the pool. On mismatch the whole queue is discarded unvalidated
// and the pool adopts the current process. The dropped handles are NOT
// closed: their sockets are shared with the parent process and closing
// them here would tear down the parent's connections.
func (p *Pool) checkFork() {
	pid := os.Getpid()
	if pid == p.pid {
		return
	}
	p.conns = nil
	p.pid = pid
}
