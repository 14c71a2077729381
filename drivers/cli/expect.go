// Package cli drives interactive command-line sessions against PON access
// equipment over telnet or SSH. Prompt detection, login, and privilege
// escalation are modeled as an explicit state machine around a goexpect
// session.
package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	expect "github.com/google/goexpect"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/nanoncore/nano-access/types"
	"github.com/nanoncore/nano-access/vendors/common"
)

// State is the per-session phase of the login/execution state machine.
type State int

const (
	StateDisconnected State = iota
	StateLoggingIn
	StateEnabling
	StateReady
	StateExecuting
)

// SessionConfig holds everything needed to establish one CLI session.
type SessionConfig struct {
	Creds        types.Credentials
	Commands     types.CommandSet
	LoginTimeout time.Duration
	SettleDelay  time.Duration
	Logger       *zap.Logger
}

// ExpectSession is one live CLI session. It satisfies pool.Transport and is
// driven by a single caller at a time (the pool's busy flag enforces this).
type ExpectSession struct {
	exp       *expect.GExpect
	sshClient *ssh.Client

	prompt     *regexp.Regexp
	privPrompt *regexp.Regexp
	settle     time.Duration
	log        *zap.Logger

	state      State
	privileged bool
	closed     atomic.Bool
}

// NewTelnetSession dials the device over telnet and performs the in-band
// login dialog: wait for the login prompt, send the username, wait for the
// password prompt, send the password, then wait for a command prompt.
func NewTelnetSession(ctx context.Context, cfg SessionConfig) (*ExpectSession, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = 10 * time.Second
	}

	conn, err := dialTelnet(ctx, cfg.Creds.Addr(23), cfg.LoginTimeout)
	if err != nil {
		return nil, err
	}

	// goexpect's generic spawn over a raw net conn, per its telnet idiom:
	// Wait blocks until Close releases it.
	resCh := make(chan error)
	exp, _, err := expect.SpawnGeneric(&expect.GenOptions{
		In:  conn,
		Out: conn,
		Wait: func() error {
			return <-resCh
		},
		Close: func() error {
			close(resCh)
			return conn.Close()
		},
		Check: func() bool { return true },
	}, cfg.LoginTimeout,
		expect.Verbose(false),
		expect.CheckDuration(100*time.Millisecond),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("spawn telnet expect session: %w", err)
	}

	s := newSession(exp, nil, cfg)

	s.state = StateLoggingIn
	if err := s.login(cfg); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.afterLogin(cfg)
	return s, nil
}

// NewSSHSession opens the session over SSH for chassis with telnet disabled.
// Authentication happens in the SSH handshake, so the state machine skips
// straight to prompt detection.
func NewSSHSession(ctx context.Context, cfg SessionConfig) (*ExpectSession, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = 10 * time.Second
	}

	// Some OLTs only accept keyboard-interactive instead of password auth.
	keyboardInteractive := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = cfg.Creds.Password
		}
		return answers, nil
	})

	sshConfig := &ssh.ClientConfig{
		User: cfg.Creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Creds.Password),
			keyboardInteractive,
		},
		Timeout:         cfg.LoginTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // equipment management networks have no host key infrastructure
	}

	client, err := ssh.Dial("tcp", cfg.Creds.Addr(22), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("dial ssh %s: %w", cfg.Creds.Host, err)
	}

	exp, _, err := expect.SpawnSSH(client, cfg.LoginTimeout,
		expect.Verbose(false),
		expect.CheckDuration(100*time.Millisecond),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("spawn ssh expect session: %w", err)
	}

	s := newSession(exp, client, cfg)

	s.state = StateLoggingIn
	out, _, err := exp.Expect(s.prompt, cfg.LoginTimeout)
	if err != nil {
		_ = s.Close()
		return nil, &types.TimeoutError{Op: "initial prompt", Timeout: cfg.LoginTimeout, Err: err}
	}
	s.observePrompt(out)

	s.afterLogin(cfg)
	return s, nil
}

func newSession(exp *expect.GExpect, sshClient *ssh.Client, cfg SessionConfig) *ExpectSession {
	return &ExpectSession{
		exp:        exp,
		sshClient:  sshClient,
		prompt:     cfg.Commands.Prompt(),
		privPrompt: cfg.Commands.PrivilegedPrompt(),
		settle:     cfg.SettleDelay,
		log:        cfg.Logger,
		state:      StateDisconnected,
	}
}

// login walks the telnet username/password dialog under the login timeout.
func (s *ExpectSession) login(cfg SessionConfig) error {
	timeout := cfg.LoginTimeout
	cs := cfg.Commands

	steps := []struct {
		op     string
		expect *regexp.Regexp
		send   string
	}{
		{"login prompt", cs.LoginPrompt(), cfg.Creds.Username},
		{"password prompt", cs.PasswordPrompt(), cfg.Creds.Password},
	}
	for _, step := range steps {
		if _, _, err := s.exp.Expect(step.expect, timeout); err != nil {
			return &types.TimeoutError{Op: step.op, Timeout: timeout, Err: err}
		}
		if err := s.exp.Send(step.send + "\r\n"); err != nil {
			return fmt.Errorf("send during login: %w", err)
		}
	}

	out, _, err := s.exp.Expect(s.prompt, timeout)
	if err != nil {
		return &types.TimeoutError{Op: "command prompt after login", Timeout: timeout, Err: err}
	}
	s.observePrompt(out)
	return nil
}

// afterLogin finishes session setup: pager off, state to Ready.
func (s *ExpectSession) afterLogin(cfg SessionConfig) {
	if cmd := cfg.Commands.PagerDisableCommand(); cmd != "" {
		// Non-fatal; some firmware rejects it outside privileged mode.
		if _, err := s.Run(cmd, cfg.LoginTimeout); err != nil {
			s.log.Debug("pager disable failed", zap.Error(err))
		}
	}
	s.state = StateReady
}

// observePrompt updates privileged-mode tracking from raw prompt output.
func (s *ExpectSession) observePrompt(out string) {
	if s.privPrompt.MatchString(out) {
		s.privileged = true
	}
}

// Privileged reports whether the session is known to be in privileged mode.
func (s *ExpectSession) Privileged() bool { return s.privileged }

// Enable escalates to privileged mode. A failure is not fatal to the caller:
// the device may already be privileged with an unmatched prompt, and the
// following command will fail on its own if it truly lacks privilege.
func (s *ExpectSession) Enable(cmd string, timeout time.Duration) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: session closed", types.ErrSessionDamaged)
	}
	if s.privileged {
		return nil
	}
	s.state = StateEnabling
	defer func() { s.state = StateReady }()

	if err := s.exp.Send(cmd + "\r\n"); err != nil {
		return fmt.Errorf("send enable: %w", err)
	}
	if _, _, err := s.exp.Expect(s.privPrompt, timeout); err != nil {
		return &types.TimeoutError{Op: "privileged prompt", Timeout: timeout, Err: err}
	}
	s.privileged = true
	return nil
}

// Run sends one command and waits for the next prompt, returning the cleaned
// output. The caller supplies the per-command timeout.
func (s *ExpectSession) Run(cmd string, timeout time.Duration) (string, error) {
	if s.closed.Load() {
		return "", fmt.Errorf("%w: session closed", types.ErrSessionDamaged)
	}
	s.state = StateExecuting
	defer func() { s.state = StateReady }()

	if err := s.exp.Send(cmd + "\r\n"); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	out, _, err := s.exp.Expect(s.prompt, timeout)
	if err != nil {
		return cleanOutput(out, cmd, s.prompt), &types.TimeoutError{
			Op:      fmt.Sprintf("prompt after %q", cmd),
			Timeout: timeout,
			Err:     err,
		}
	}
	s.observePrompt(out)

	// Some devices flush trailing output after the prompt reappears. Wait
	// out the settle window on the expect buffer and fold whatever arrived
	// into this command's output instead of leaking it into the next one.
	if s.settle > 0 {
		if extra, _, _ := s.exp.Expect(neverMatches, s.settle); extra != "" {
			out += extra
		}
	}

	return cleanOutput(out, cmd, s.prompt), nil
}

// neverMatches matches no input, so an Expect on it runs the full timeout
// and returns everything buffered in that window.
var neverMatches = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)

// cleanOutput strips the command echo, prompt lines, and ANSI sequences.
func cleanOutput(out, cmd string, prompt *regexp.Regexp) string {
	out = common.StripANSI(out)

	lines := strings.Split(out, "\n")
	var cleaned []string
	for i, line := range lines {
		if i == 0 && strings.Contains(line, cmd) {
			continue
		}
		if prompt.MatchString(strings.TrimRight(line, " \r")) {
			continue
		}
		cleaned = append(cleaned, strings.TrimRight(line, "\r"))
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// Alive reports whether the session has not been closed. Actual transport
// death is detected on the next prompt wait.
func (s *ExpectSession) Alive() bool {
	return !s.closed.Load()
}

// Close tears the session down. Safe to call more than once.
func (s *ExpectSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.state = StateDisconnected

	err := s.exp.Close()
	if s.sshClient != nil {
		if cerr := s.sshClient.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
