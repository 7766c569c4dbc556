package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/logging"
	"stream-cutter/infrastructure/metrics"

	"go.uber.org/zap"
)

const (
	defaultMaxLines  = 1000
	defaultKillGrace = 5 * time.Second
	maxLineBytes     = 1 << 20
)

// Runner defines the interface for running external commands.
// This allows mocking exec.Command in tests.
type Runner interface {
	// Run executes binaryPath to completion or until timeout elapses.
	// It fails only with *media.SpawnError when the process cannot be started.
	Run(ctx context.Context, binaryPath string, args []string, timeout time.Duration) (*media.ProcessOutcome, error)

	// Output executes a command and returns its standard output
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production implementation using os/exec.
// Every Run owns its child process and output buffers.
type ExecRunner struct {
	logger    *zap.Logger
	maxLines  int
	killGrace time.Duration
}

// RunnerOption is a functional option for configuring ExecRunner
type RunnerOption func(*ExecRunner)

// WithRunnerLogger sets the logger (defaults to the context logger)
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *ExecRunner) {
		r.logger = logger
	}
}

// WithMaxLines sets how many trailing lines are kept per stream
func WithMaxLines(n int) RunnerOption {
	return func(r *ExecRunner) {
		r.maxLines = n
	}
}

// WithKillGrace sets how long to wait for a killed process to be reaped
func WithKillGrace(d time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		r.killGrace = d
	}
}

// NewExecRunner creates a new ExecRunner
func NewExecRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		maxLines:  defaultMaxLines,
		killGrace: defaultKillGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
// Cancelling ctx does not stop the child; only the timeout does.
func (r *ExecRunner) Run(ctx context.Context, binaryPath string, args []string, timeout time.Duration) (*media.ProcessOutcome, error) {
	logger := r.loggerFor(ctx).With(zap.String("binary", binaryPath))

	runCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	cmd := exec.Command(binaryPath, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, r.spawnFailed(logger, binaryPath, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, r.spawnFailed(logger, binaryPath, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, r.spawnFailed(logger, binaryPath, err)
	}
	logger.Info("process started", zap.Strings("args", args), zap.Int("pid", cmd.Process.Pid))

	stdoutLines := newLineBuffer(r.maxLines)
	stderrLines := newLineBuffer(r.maxLines)

	// Both pipes are drained continuously so the child never blocks on a full
	// pipe buffer; Wait may only be called once all reads have completed.
	var readers sync.WaitGroup
	readers.Add(2)
	go drain(&readers, stdout, stdoutLines, logger.With(zap.String("stream", "stdout")))
	go drain(&readers, stderr, stderrLines, logger.With(zap.String("stream", "stderr")))

	done := make(chan error, 1)
	go func() {
		readers.Wait()
		done <- cmd.Wait()
	}()

	select {
	case waitErr := <-done:
		outcome := &media.ProcessOutcome{
			ExitCode:    exitCode(cmd, waitErr, logger),
			StdoutLines: stdoutLines.Lines(),
			StderrLines: stderrLines.Lines(),
		}
		metrics.RecordProcessRun("exited")
		logger.Info("process exited", zap.Int("exit_code", outcome.ExitCode))
		return outcome, nil

	case <-runCtx.Done():
	}

	logger.Warn("process timed out", zap.Duration("timeout", timeout))
	if err := killProcess(cmd); err != nil {
		logger.Error("process kill failed", zap.Error(err))
	}

	select {
	case <-done:
	case <-time.After(r.killGrace):
		logger.Warn("killed process was not reaped", zap.Duration("grace", r.killGrace))
	}

	metrics.RecordProcessRun("timed_out")
	return &media.ProcessOutcome{
		ExitCode:    -1,
		TimedOut:    true,
		StdoutLines: stdoutLines.Lines(),
		StderrLines: stderrLines.Lines(),
	}, nil
}

// Output executes a command and returns its output
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

func (r *ExecRunner) loggerFor(ctx context.Context) *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.WithContext(ctx)
}

func (r *ExecRunner) spawnFailed(logger *zap.Logger, binaryPath string, err error) error {
	metrics.RecordProcessRun("spawn_failed")
	logger.Error("process could not be started", zap.Error(err))
	return &media.SpawnError{Binary: binaryPath, Err: err}
}

func exitCode(cmd *exec.Cmd, waitErr error, logger *zap.Logger) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	logger.Warn("process wait failed", zap.Error(waitErr))
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func drain(wg *sync.WaitGroup, rd io.Reader, buf *lineBuffer, logger *zap.Logger) {
	defer wg.Done()

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		buf.Add(line)
		logger.Debug("process output", zap.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("process output not line-readable", zap.Error(err))
		_, _ = io.Copy(io.Discard, rd)
	}
}

// scanLines splits on '\n' or '\r'; ffmpeg rewrites progress lines with '\r'
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// lineBuffer keeps the last max lines of a stream
type lineBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineBuffer(max int) *lineBuffer {
	if max <= 0 {
		max = defaultMaxLines
	}
	return &lineBuffer{max: max}
}

func (b *lineBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == b.max {
		b.lines = append(b.lines[:0], b.lines[1:]...)
	}
	b.lines = append(b.lines, line)
}

func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Ensure ExecRunner implements Runner
var _ Runner = (*ExecRunner)(nil)
