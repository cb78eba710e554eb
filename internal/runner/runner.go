// Package runner owns the IUT process and exchanges framed messages with it
// over its standard input and output.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
)

var (
	// ErrAlreadyRunning is returned by Spawn when the process is alive.
	ErrAlreadyRunning = errors.New("program is already running")

	// ErrNotRunning is returned by Send before Spawn or after Kill.
	ErrNotRunning = errors.New("program is not running")
)

// SpawnError reports that the IUT could not be started.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn the testee program %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a broken exchange. The stream cannot be
// resynchronized after one, so the run must stop.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Config describes how to start the IUT.
type Config struct {
	Program string
	Args    []string

	// Env overrides variables of the harness environment.
	Env map[string]string

	// Stderr is "" or "ignore" to discard the IUT's stderr, otherwise the
	// path of a file that receives it.
	Stderr string

	Logger *slog.Logger
}

// Runner is a half-duplex channel to one IUT process. Only Interrupt may be
// called concurrently with the other methods.
type Runner struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	proc *os.Process

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *os.File
}

// New returns a Runner for cfg. The process starts with Spawn.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Running reports whether the process has been spawned and not killed.
func (r *Runner) Running() bool {
	return r.cmd != nil
}

// Spawn starts the IUT with piped stdin and stdout.
func (r *Runner) Spawn() error {
	if r.cmd != nil {
		return &SpawnError{Program: r.cfg.Program, Err: ErrAlreadyRunning}
	}

	cmd := exec.Command(r.cfg.Program, r.cfg.Args...)
	cmd.Env = mergeEnv(cmd.Environ(), r.cfg.Env)

	var stderr *os.File
	if r.cfg.Stderr != "" && r.cfg.Stderr != "ignore" {
		f, err := os.Create(r.cfg.Stderr)
		if err != nil {
			return &SpawnError{Program: r.cfg.Program, Err: fmt.Errorf("failed to create stderr file for the runner: %w", err)}
		}
		stderr = f
		cmd.Stderr = f
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		closeFile(stderr)
		return &SpawnError{Program: r.cfg.Program, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		closeFile(stderr)
		return &SpawnError{Program: r.cfg.Program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		closeFile(stderr)
		return &SpawnError{Program: r.cfg.Program, Err: err}
	}

	r.mu.Lock()
	r.proc = cmd.Process
	r.mu.Unlock()

	r.cmd = cmd
	r.stdin = stdin
	r.stdout = bufio.NewReader(stdout)
	r.stderr = stderr

	r.logger.Debug("spawned testee program",
		"program", r.cfg.Program,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// Send writes one request frame and blocks until the response frame arrives.
func (r *Runner) Send(payload []byte) ([]byte, error) {
	if r.cmd == nil {
		return nil, &ProtocolError{Op: "send", Err: ErrNotRunning}
	}

	if err := WriteFrame(r.stdin, payload); err != nil {
		return nil, &ProtocolError{Op: "write request", Err: err}
	}
	res, err := ReadFrame(r.stdout)
	if err != nil {
		return nil, &ProtocolError{Op: "read response", Err: err}
	}
	return res, nil
}

// Kill terminates the process and releases its pipes. Killing a runner that
// is not running is a no-op.
func (r *Runner) Kill() error {
	if r.cmd == nil {
		return nil
	}
	cmd := r.cmd
	r.cmd = nil

	r.mu.Lock()
	r.proc = nil
	r.mu.Unlock()

	r.stdin.Close()
	var killErr error
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		killErr = fmt.Errorf("failed to kill the testee program: %w", err)
	}
	// The exit status of a killed process is not interesting.
	_ = cmd.Wait()
	closeFile(r.stderr)

	r.stdin, r.stdout, r.stderr = nil, nil, nil
	r.logger.Debug("killed testee program", "program", r.cfg.Program)
	return killErr
}

// Interrupt kills the process without releasing it, so a Send blocked on
// the response fails with a ProtocolError. Kill must still be called.
func (r *Runner) Interrupt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc == nil {
		return nil
	}
	if err := r.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to interrupt the testee program: %w", err)
	}
	r.logger.Debug("interrupted testee program", "program", r.cfg.Program)
	return nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := append([]string(nil), base...)
	for _, k := range keys {
		merged = append(merged, k+"="+overrides[k])
	}
	return merged
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
