package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nanoncore/nano-access/pool"
	"github.com/nanoncore/nano-access/types"
)

// ExecutorConfig holds the per-phase timeouts for interactive execution.
type ExecutorConfig struct {
	// LoginTimeout bounds connect + login, EnableTimeout the privilege
	// escalation, CommandTimeout each command's prompt wait.
	LoginTimeout   time.Duration
	EnableTimeout  time.Duration
	CommandTimeout time.Duration

	// SettleDelay is waited after the prompt reappears before output is
	// treated as final. Zero by default.
	SettleDelay time.Duration

	// MaxOutputBytes bounds captured output. Zero means DefaultMaxOutput.
	MaxOutputBytes int
}

func (c *ExecutorConfig) applyDefaults() {
	if c.LoginTimeout == 0 {
		c.LoginTimeout = 10 * time.Second
	}
	if c.EnableTimeout == 0 {
		c.EnableTimeout = 5 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutput
	}
}

// runner is the slice of ExpectSession the executor drives. Narrowed for
// the package tests.
type runner interface {
	Run(cmd string, timeout time.Duration) (string, error)
	Enable(cmd string, timeout time.Duration) error
	Privileged() bool
}

// Executor runs interactive commands against pooled CLI sessions. Failures
// after a session is acquired are folded into the CommandResult; failures to
// acquire at all propagate as errors.
type Executor struct {
	pool *pool.Pool
	cfg  ExecutorConfig
	log  *zap.Logger

	// connect builds the pool's connect callback; swapped out in tests.
	connect func(types.Credentials, types.CommandSet) pool.ConnectFunc
}

// NewExecutor creates an executor on top of an existing session pool.
func NewExecutor(p *pool.Pool, cfg ExecutorConfig, log *zap.Logger) *Executor {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{pool: p, cfg: cfg, log: log}
	e.connect = e.dial
	return e
}

// dial builds the real connect callback for one credential set.
func (e *Executor) dial(creds types.Credentials, cs types.CommandSet) pool.ConnectFunc {
	return func(ctx context.Context) (pool.Transport, error) {
		cfg := SessionConfig{
			Creds:        creds,
			Commands:     cs,
			LoginTimeout: e.cfg.LoginTimeout,
			SettleDelay:  e.cfg.SettleDelay,
			Logger:       e.log,
		}
		if creds.Transport == types.TransportSSH {
			return NewSSHSession(ctx, cfg)
		}
		return NewTelnetSession(ctx, cfg)
	}
}

// RunCommand executes a single command: acquire, execute, release.
func (e *Executor) RunCommand(ctx context.Context, req types.CommandRequest, cs types.CommandSet) (types.CommandResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return types.CommandResult{}, fmt.Errorf("%w: empty command", types.ErrInvalidInput)
	}

	s, err := e.pool.Acquire(ctx, req.Host, req.Username, req.Password, e.connect(req.Credentials, cs))
	if err != nil {
		return types.CommandResult{}, err
	}

	res, runErr := e.execute(s, req.Command, req.Enable, req.Timeout, cs)
	e.finish(s, runErr)
	return res, nil
}

// RunCommands acquires one session and executes the commands sequentially,
// stopping at the first failure. The partial results are always returned.
func (e *Executor) RunCommands(ctx context.Context, creds types.Credentials, commands []string, enable bool, timeout time.Duration, cs types.CommandSet) ([]types.CommandResult, error) {
	if len(commands) == 0 {
		return nil, fmt.Errorf("%w: empty command list", types.ErrInvalidInput)
	}

	s, err := e.pool.Acquire(ctx, creds.Host, creds.Username, creds.Password, e.connect(creds, cs))
	if err != nil {
		return nil, err
	}

	results := make([]types.CommandResult, 0, len(commands))
	var lastErr error
	for _, cmd := range commands {
		res, runErr := e.execute(s, cmd, enable, timeout, cs)
		results = append(results, res)
		if !res.Success {
			lastErr = runErr
			break
		}
	}

	e.finish(s, lastErr)
	return results, nil
}

// execute runs one command on an acquired session. The returned error mirrors
// the failure recorded in the result and is used only to decide whether the
// session can be recycled.
func (e *Executor) execute(s *pool.Session, command string, enable bool, timeout time.Duration, cs types.CommandSet) (types.CommandResult, error) {
	start := time.Now()

	fail := func(err error) (types.CommandResult, error) {
		return types.CommandResult{
			Success: false,
			Elapsed: time.Since(start),
			Err:     err.Error(),
		}, err
	}

	if strings.TrimSpace(command) == "" {
		return fail(fmt.Errorf("%w: empty command", types.ErrInvalidInput))
	}

	r, ok := s.Transport().(runner)
	if !ok {
		return fail(fmt.Errorf("pooled transport is not a CLI session"))
	}

	cmd := SanitizeCommand(command)
	if cmd != command {
		e.log.Debug("command text sanitized",
			zap.Int("removed", len(command)-len(cmd)))
	}

	if enable && !r.Privileged() {
		// Tolerated: the session may already be privileged behind an
		// unmatched prompt, and the command itself will surface a real
		// authorization failure.
		if err := r.Enable(cs.EnableCommand(), e.cfg.EnableTimeout); err != nil {
			e.log.Debug("enable failed, proceeding", zap.Error(err))
		}
	}

	if timeout <= 0 {
		timeout = e.cfg.CommandTimeout
	}

	out, err := r.Run(cmd, timeout)
	elapsed := time.Since(start)
	out = Truncate(out, e.cfg.MaxOutputBytes)

	if err != nil {
		e.log.Warn("command failed",
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return types.CommandResult{
			Success: false,
			Output:  out,
			Elapsed: elapsed,
			Err:     err.Error(),
		}, err
	}

	return types.CommandResult{
		Success: true,
		Output:  out,
		Elapsed: elapsed,
	}, nil
}

// finish returns the session to the pool. After a prompt-wait failure the
// terminal state is unknown, so the session is discarded rather than
// recycled into the next caller's hands.
func (e *Executor) finish(s *pool.Session, runErr error) {
	if runErr != nil && (types.IsTimeout(runErr) || isTransportErr(runErr) || errors.Is(runErr, types.ErrSessionDamaged)) {
		e.pool.Discard(s)
		return
	}
	e.pool.Release(s)
}

func isTransportErr(err error) bool {
	var ce *types.ConnError
	return errors.As(err, &ce)
}
