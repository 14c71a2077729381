// Package pool maintains a keyed cache of live interactive sessions to
// network equipment. Interactive logins are slow (seconds per connect on
// older chassis), so sessions are reused across command executions and
// reaped only after sitting idle.
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nanoncore/nano-access/types"
)

// Transport is the live device session held by the pool. The concrete type
// is the CLI expect session; the pool only needs liveness and teardown.
type Transport interface {
	Alive() bool
	Close() error
}

// ConnectFunc establishes a new transport for a session slot.
type ConnectFunc func(ctx context.Context) (Transport, error)

// Config holds pool sizing and reaping parameters.
type Config struct {
	// MaxConnections bounds the number of live sessions. Zero means 10.
	MaxConnections int

	// IdleTimeout is how long a released session may sit unused before the
	// sweeper closes it. Zero means 5 minutes.
	IdleTimeout time.Duration

	// SweepInterval is how often the idle reaper runs. Zero means 30s.
	SweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Session is one pooled device session. Ownership of the transport belongs
// to the acquirer between Acquire and Release/Discard; the pool owns it
// otherwise.
type Session struct {
	key      string
	tr       Transport
	lastUsed time.Time
	busy     bool
}

// Transport returns the underlying device session.
func (s *Session) Transport() Transport { return s.tr }

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Total  int
	Active int
	Idle   int
}

// Pool is the owned arena of sessions indexed by identity key. All state is
// guarded by mu; there is no package-level instance.
type Pool struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	sessions map[string]*Session
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// New creates a pool and starts its idle sweeper.
func New(cfg Config, log *zap.Logger) *Pool {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.sweepLoop()

	return p
}

// identityKey derives the map key for one credential set. The password is
// folded in as a digest so secrets never sit in map keys or log fields.
func identityKey(host, username, password string) string {
	sum := sha256.Sum256([]byte(password))
	return host + "\x00" + username + "\x00" + hex.EncodeToString(sum[:])
}

// Acquire returns the live session for the given credentials, connecting one
// if needed. A session already executing for the same identity is waited on
// until released, so command bytes from two callers never interleave on one
// transport. Connection failures propagate; the pool does not retry.
func (p *Pool) Acquire(ctx context.Context, host, username, password string, connect ConnectFunc) (*Session, error) {
	key := identityKey(host, username, password)

	// Wake waiters when the caller's context expires so they can bail out.
	stopWatch := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.mu.Unlock() //nolint:staticcheck // pairing orders the broadcast after any in-flight wait
		p.cond.Broadcast()
	})
	defer stopWatch()

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("pool is shut down")
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("acquire session for %s: %w", host, err)
		}

		s, ok := p.sessions[key]
		if !ok {
			break
		}
		if s.busy {
			// Same identity, command in flight: wait for release.
			p.cond.Wait()
			continue
		}

		if s.tr.Alive() {
			s.busy = true
			s.lastUsed = time.Now()
			p.mu.Unlock()
			return s, nil
		}

		// Stale entry: the device closed the transport while it sat idle.
		p.log.Debug("evicting dead session", zap.String("host", host))
		_ = s.tr.Close()
		delete(p.sessions, key)
		break
	}

	// No usable entry. Make room if the pool is full.
	if len(p.sessions) >= p.cfg.MaxConnections {
		if !p.evictIdleLocked() {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: %d sessions, all busy", types.ErrPoolExhausted, p.cfg.MaxConnections)
		}
	}

	// Reserve the slot before dialing so a concurrent acquire for the same
	// identity waits instead of opening a second transport.
	s := &Session{key: key, busy: true, lastUsed: time.Now()}
	p.sessions[key] = s
	p.mu.Unlock()

	tr, err := connect(ctx)

	p.mu.Lock()
	if err != nil {
		delete(p.sessions, key)
		p.cond.Broadcast()
		p.mu.Unlock()
		return nil, &types.ConnError{Host: host, Err: err}
	}
	if p.closed {
		delete(p.sessions, key)
		p.mu.Unlock()
		_ = tr.Close()
		return nil, fmt.Errorf("pool is shut down")
	}
	s.tr = tr
	s.lastUsed = time.Now()
	p.mu.Unlock()

	return s, nil
}

// evictIdleLocked closes the least recently used non-busy session to free a
// slot. Returns false when every session is busy. Caller holds mu.
func (p *Pool) evictIdleLocked() bool {
	var victim *Session
	for _, s := range p.sessions {
		if s.busy {
			continue
		}
		if victim == nil || s.lastUsed.Before(victim.lastUsed) {
			victim = s
		}
	}
	if victim == nil {
		return false
	}

	p.log.Debug("evicting idle session to free capacity")
	if victim.tr != nil {
		_ = victim.tr.Close()
	}
	delete(p.sessions, victim.key)
	return true
}

// Release returns a session to the pool after a command execution. No-op if
// the session was already evicted.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.sessions[s.key]; ok && cur == s {
		s.busy = false
		s.lastUsed = time.Now()
	}
	p.cond.Broadcast()
}

// Discard closes and removes a session whose terminal state is no longer
// trusted (command timeout mid-prompt). The next acquire reconnects.
func (p *Pool) Discard(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.sessions[s.key]; ok && cur == s {
		delete(p.sessions, s.key)
	}
	if s.tr != nil {
		_ = s.tr.Close()
	}
	p.cond.Broadcast()
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{Total: len(p.sessions)}
	for _, s := range p.sessions {
		if s.busy {
			st.Active++
		} else {
			st.Idle++
		}
	}
	return st
}

// CloseAll stops the sweeper and closes every session, busy or not. Used at
// shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)

	for key, s := range p.sessions {
		if s.tr != nil {
			_ = s.tr.Close()
		}
		delete(p.sessions, key)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.done
}

func (p *Pool) sweepLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			p.sweep(now)
		}
	}
}

// sweep closes non-busy sessions whose idle time exceeds the configured
// threshold.
func (p *Pool) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, s := range p.sessions {
		if s.busy {
			continue
		}
		if now.Sub(s.lastUsed) < p.cfg.IdleTimeout {
			continue
		}
		p.log.Debug("reaping idle session",
			zap.Duration("idle", now.Sub(s.lastUsed)))
		if s.tr != nil {
			_ = s.tr.Close()
		}
		delete(p.sessions, key)
	}
	p.cond.Broadcast()
}
