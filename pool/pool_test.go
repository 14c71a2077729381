package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-access/types"
)

type fakeTransport struct {
	alive  atomic.Bool
	closed atomic.Bool
}

func newFakeTransport() *fakeTransport {
	t := &fakeTransport{}
	t.alive.Store(true)
	return t
}

func (t *fakeTransport) Alive() bool { return t.alive.Load() }

func (t *fakeTransport) Close() error {
	t.alive.Store(false)
	t.closed.Store(true)
	return nil
}

func connectFake(t *fakeTransport) ConnectFunc {
	return func(ctx context.Context) (Transport, error) {
		return t, nil
	}
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p := New(cfg, nil)
	t.Cleanup(p.CloseAll)
	return p
}

func TestAcquireReusesSessionForSameIdentity(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	tr := newFakeTransport()
	dials := 0
	connect := func(ctx context.Context) (Transport, error) {
		dials++
		return tr, nil
	}

	s1, err := p.Acquire(ctx, "10.0.0.1", "admin", "secret", connect)
	require.NoError(t, err)
	p.Release(s1)

	s2, err := p.Acquire(ctx, "10.0.0.1", "admin", "secret", connect)
	require.NoError(t, err)
	p.Release(s2)

	assert.Same(t, s1, s2, "same identity must map to the same pooled session")
	assert.Equal(t, 1, dials, "second acquire must not reconnect")
}

func TestAcquireDistinguishesPasswords(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	s1, err := p.Acquire(ctx, "10.0.0.1", "admin", "secret", connectFake(newFakeTransport()))
	require.NoError(t, err)
	s2, err := p.Acquire(ctx, "10.0.0.1", "admin", "other", connectFake(newFakeTransport()))
	require.NoError(t, err)

	assert.NotSame(t, s1, s2, "different passwords are different identities")
	assert.Equal(t, Stats{Total: 2, Active: 2}, p.Stats())
}

func TestAcquireWaitsWhileSameIdentityBusy(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	s1, err := p.Acquire(ctx, "10.0.0.1", "admin", "secret", connectFake(newFakeTransport()))
	require.NoError(t, err)

	got := make(chan *Session, 1)
	go func() {
		s, err := p.Acquire(ctx, "10.0.0.1", "admin", "secret", connectFake(newFakeTransport()))
		if err != nil {
			got <- nil
			return
		}
		got <- s
	}()

	select {
	case <-got:
		t.Fatal("second acquire completed while session was busy")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(s1)

	select {
	case s2 := <-got:
		require.NotNil(t, s2)
		assert.Same(t, s1, s2)
	case <-time.After(time.Second):
		t.Fatal("second acquire did not complete after release")
	}
}

func TestAcquireFailsWhenPoolExhausted(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 2})
	ctx := context.Background()

	_, err := p.Acquire(ctx, "hostA", "admin", "pw", connectFake(newFakeTransport()))
	require.NoError(t, err)
	_, err = p.Acquire(ctx, "hostB", "admin", "pw", connectFake(newFakeTransport()))
	require.NoError(t, err)

	_, err = p.Acquire(ctx, "hostC", "admin", "pw", connectFake(newFakeTransport()))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPoolExhausted)
}

func TestAcquireEvictsIdleAtCapacity(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 2})
	ctx := context.Background()

	trA := newFakeTransport()
	sA, err := p.Acquire(ctx, "hostA", "admin", "pw", connectFake(trA))
	require.NoError(t, err)
	p.Release(sA)

	_, err = p.Acquire(ctx, "hostB", "admin", "pw", connectFake(newFakeTransport()))
	require.NoError(t, err)

	// hostA is idle, so hostC can steal its slot.
	_, err = p.Acquire(ctx, "hostC", "admin", "pw", connectFake(newFakeTransport()))
	require.NoError(t, err)

	assert.True(t, trA.closed.Load(), "evicted idle session must be closed")
	assert.Equal(t, 2, p.Stats().Total)
}

func TestAcquireReplacesDeadSession(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	trOld := newFakeTransport()
	s1, err := p.Acquire(ctx, "10.0.0.1", "admin", "pw", connectFake(trOld))
	require.NoError(t, err)
	p.Release(s1)

	// Device dropped the transport while idle.
	trOld.alive.Store(false)

	trNew := newFakeTransport()
	s2, err := p.Acquire(ctx, "10.0.0.1", "admin", "pw", connectFake(trNew))
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.Same(t, trNew, s2.Transport().(*fakeTransport))
}

func TestConnectFailurePropagates(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	boom := errors.New("connection refused")
	_, err := p.Acquire(ctx, "10.0.0.1", "admin", "pw", func(ctx context.Context) (Transport, error) {
		return nil, boom
	})
	require.Error(t, err)

	var ce *types.ConnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "10.0.0.1", ce.Host)
	assert.ErrorIs(t, err, boom)

	// The reserved slot must not linger after a failed dial.
	assert.Equal(t, 0, p.Stats().Total)
}

func TestSweepReapsIdleSessions(t *testing.T) {
	p := newTestPool(t, Config{
		MaxConnections: 4,
		IdleTimeout:    time.Minute,
		SweepInterval:  time.Hour, // sweep driven manually below
	})
	ctx := context.Background()

	trIdle := newFakeTransport()
	sIdle, err := p.Acquire(ctx, "hostA", "admin", "pw", connectFake(trIdle))
	require.NoError(t, err)
	p.Release(sIdle)

	trBusy := newFakeTransport()
	_, err = p.Acquire(ctx, "hostB", "admin", "pw", connectFake(trBusy))
	require.NoError(t, err)

	p.sweep(time.Now().Add(2 * time.Minute))

	assert.True(t, trIdle.closed.Load(), "idle session past threshold must be reaped")
	assert.False(t, trBusy.closed.Load(), "busy session must survive the sweep")
	assert.Equal(t, Stats{Total: 1, Active: 1}, p.Stats())
}

func TestDiscardRemovesSession(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})
	ctx := context.Background()

	tr := newFakeTransport()
	s, err := p.Acquire(ctx, "10.0.0.1", "admin", "pw", connectFake(tr))
	require.NoError(t, err)

	p.Discard(s)

	assert.True(t, tr.closed.Load())
	assert.Equal(t, 0, p.Stats().Total)
}

func TestCloseAllClosesEverything(t *testing.T) {
	p := New(Config{MaxConnections: 4}, nil)
	ctx := context.Background()

	trA := newFakeTransport()
	trB := newFakeTransport()
	_, err := p.Acquire(ctx, "hostA", "admin", "pw", connectFake(trA))
	require.NoError(t, err)
	sB, err := p.Acquire(ctx, "hostB", "admin", "pw", connectFake(trB))
	require.NoError(t, err)
	p.Release(sB)

	p.CloseAll()

	assert.True(t, trA.closed.Load(), "busy sessions are closed at shutdown too")
	assert.True(t, trB.closed.Load())
	assert.Equal(t, 0, p.Stats().Total)

	_, err = p.Acquire(ctx, "hostC", "admin", "pw", connectFake(newFakeTransport()))
	assert.Error(t, err)
}

func TestAcquireHonorsContextWhileWaiting(t *testing.T) {
	p := newTestPool(t, Config{MaxConnections: 4})

	_, err := p.Acquire(context.Background(), "10.0.0.1", "admin", "pw", connectFake(newFakeTransport()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx, "10.0.0.1", "admin", "pw", connectFake(newFakeTransport()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
