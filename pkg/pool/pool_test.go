package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgstash/pgstash/pkg/config"
)

// fakeConn is an in-memory Conn with scriptable liveness and activity.
type fakeConn struct {
	id     int
	alive  bool
	active bool
	closed bool
}

func (c *fakeConn) IsAlive(context.Context) bool { return c.alive }
func (c *fakeConn) IsActive() bool               { return c.active }
func (c *fakeConn) Close(context.Context) error  { c.closed = true; return nil }

func liveConn(id int) *fakeConn {
	return &fakeConn{id: id, alive: true, active: true}
}

// fakeConnector counts dials and hands out live fakeConns (or a scripted
// error).
type fakeConnector struct {
	calls int
	err   error
}

func (f *fakeConnector) Connect(context.Context, *config.Config) (Conn, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return liveConn(1000 + f.calls), nil
}

func newTestPool(t *testing.T, capacity int) (*Pool, *fakeConnector) {
	t.Helper()
	cfg := config.New()
	cfg.SetCapacity(capacity)
	connector := &fakeConnector{}
	return New(cfg, connector), connector
}

func TestAcquire_DialsWhenEmpty(t *testing.T) {
	p, connector := newTestPool(t, 5)

	conn, err := p.Acquire(context.Background())

	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, 1, connector.calls)
	// A freshly dialed connection is owned by the caller, not the queue.
	require.Equal(t, 0, p.Len())
}

func TestAcquire_ReusesOldestLiveHandle(t *testing.T) {
	p, connector := newTestPool(t, 5)
	ctx := context.Background()

	first := liveConn(1)
	second := liveConn(2)
	p.Release(ctx, first)
	p.Release(ctx, second)

	conn, err := p.Acquire(ctx)

	require.NoError(t, err)
	require.Same(t, first, conn)
	require.Equal(t, 1, p.Len())
	require.Equal(t, 0, connector.calls)
}

func TestAcquire_SkipsDeadHandles(t *testing.T) {
	p, connector := newTestPool(t, 5)
	ctx := context.Background()

	dead1 := &fakeConn{id: 1, alive: false, active: true}
	dead2 := &fakeConn{id: 2, alive: false, active: true}
	live := liveConn(3)
	p.conns = []Conn{dead1, dead2, live}

	conn, err := p.Acquire(ctx)

	require.NoError(t, err)
	require.Same(t, live, conn)
	require.Equal(t, 0, connector.calls)
	require.Equal(t, 0, p.Len())
	require.True(t, dead1.closed)
	require.True(t, dead2.closed)
}

func TestAcquire_DialsWhenAllHandlesDead(t *testing.T) {
	p, connector := newTestPool(t, 5)
	ctx := context.Background()

	dead := &fakeConn{id: 1, alive: false, active: true}
	p.conns = []Conn{dead}

	conn, err := p.Acquire(ctx)

	require.NoError(t, err)
	require.NotSame(t, dead, conn)
	require.Equal(t, 1, connector.calls)
	require.True(t, dead.closed)
	require.Equal(t, 0, p.Len())
}

func TestAcquire_ConnectErrorPropagates(t *testing.T) {
	p, connector := newTestPool(t, 5)
	ctx := context.Background()

	driverErr := errors.New("connection refused")
	connector.err = driverErr
	dead := &fakeConn{id: 1, alive: false, active: true}
	p.conns = []Conn{dead}

	conn, err := p.Acquire(ctx)

	require.Nil(t, conn)
	var cErr *ConnectError
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, "dbname=testdb", cErr.Address)
	require.ErrorIs(t, err, driverErr)
	require.Equal(t, 1, connector.calls, "a failed dial is not retried")
	// Dead handles discarded during the same call stay discarded.
	require.Equal(t, 0, p.Len())
}

func TestAcquire_ForkDiscardsQueue(t *testing.T) {
	p, connector := newTestPool(t, 5)
	ctx := context.Background()

	inherited := []*fakeConn{liveConn(1), liveConn(2), liveConn(3)}
	for _, c := range inherited {
		p.Release(ctx, c)
	}
	require.Equal(t, 3, p.Len())

	// Pretend the cached handles were enqueued by another process.
	p.pid--

	conn, err := p.Acquire(ctx)

	require.NoError(t, err)
	require.Equal(t, 1, connector.calls, "pre-fork handles must never be reused")
	for _, c := range inherited {
		require.NotSame(t, c, conn)
		require.False(t, c.closed, "pre-fork handles belong to the parent and must not be closed")
	}
	require.Equal(t, 0, p.Len())

	// The pool belongs to this process again: releases are cached as usual.
	p.Release(ctx, conn)
	require.Equal(t, 1, p.Len())
}

func TestRelease_EnqueuesActiveHandle(t *testing.T) {
	p, _ := newTestPool(t, 5)
	ctx := context.Background()

	conn := liveConn(1)
	p.Release(ctx, conn)

	require.Equal(t, 1, p.Len())
	require.False(t, conn.closed)
}

func TestRelease_DropsInactiveHandle(t *testing.T) {
	p, _ := newTestPool(t, 5)
	ctx := context.Background()

	conn := &fakeConn{id: 1, alive: true, active: false}
	p.Release(ctx, conn)

	require.Equal(t, 0, p.Len())
	require.True(t, conn.closed)
}

func TestRelease_EvictsOldestBeyondCapacity(t *testing.T) {
	const capacity = 3
	p, _ := newTestPool(t, capacity)
	ctx := context.Background()

	released := make([]*fakeConn, 0, capacity+2)
	for i := 1; i <= capacity+2; i++ {
		conn := liveConn(i)
		released = append(released, conn)
		p.Release(ctx, conn)
	}

	require.Equal(t, capacity, p.Len())
	// The oldest two were evicted and closed, the rest survive in order.
	require.True(t, released[0].closed)
	require.True(t, released[1].closed)
	require.Equal(t, []Conn{released[2], released[3], released[4]}, p.conns)
}

func TestRelease_NilIsIgnored(t *testing.T) {
	p, _ := newTestPool(t, 5)

	p.Release(context.Background(), nil)

	require.Equal(t, 0, p.Len())
}

func TestPool_FIFOAcrossAcquireRelease(t *testing.T) {
	p, _ := newTestPool(t, 5)
	ctx := context.Background()

	a, b := liveConn(1), liveConn(2)
	p.Release(ctx, a)
	p.Release(ctx, b)

	// Reuse pops the front; re-admission appends at the back.
	got, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, a, got)
	p.Release(ctx, got)

	got, err = p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, b, got)
}
