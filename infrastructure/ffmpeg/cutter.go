package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stream-cutter/domain/media"
)

const (
	defaultTimeout = 10 * time.Minute
	versionTimeout = 5 * time.Second
)

// Cutter implements media.Cutter using ffmpeg stream copy
type Cutter struct {
	ffmpegPath string
	timeout    time.Duration
	runner     Runner
}

// CutterOption is a functional option for configuring Cutter
type CutterOption func(*Cutter)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) CutterOption {
	return func(c *Cutter) {
		c.ffmpegPath = path
	}
}

// WithTimeout sets the maximum wall-clock time of a single cut
func WithTimeout(d time.Duration) CutterOption {
	return func(c *Cutter) {
		c.timeout = d
	}
}

// WithRunner sets a custom process runner (for testing)
func WithRunner(runner Runner) CutterOption {
	return func(c *Cutter) {
		c.runner = runner
	}
}

// NewCutter creates a new FFmpeg-based cutter
func NewCutter(opts ...CutterOption) *Cutter {
	c := &Cutter{
		ffmpegPath: "ffmpeg",
		timeout:    defaultTimeout,
		runner:     NewExecRunner(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Path returns the configured ffmpeg executable
func (c *Cutter) Path() string {
	return c.ffmpegPath
}

// Cut implements media.Cutter
func (c *Cutter) Cut(ctx context.Context, job media.CutJob) (*media.ProcessOutcome, error) {
	return c.runner.Run(ctx, c.ffmpegPath, CutArgs(job), c.timeout)
}

// CutArgs builds the ffmpeg argument list for a stream-copy cut.
// Input seeking comes after -i so the cut is accurate; timestamps are
// shifted to start at zero.
func CutArgs(job media.CutJob) []string {
	return []string{
		"-i", job.InputPath,
		"-ss", job.Range.Start.String(),
		"-t", job.Range.Duration.String(),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		job.OutputPath,
	}
}

// VerifyInstalled checks that ffmpeg is available.
// An absolute path only needs to exist; a bare name is resolved by running it.
func (c *Cutter) VerifyInstalled(ctx context.Context) error {
	if filepath.IsAbs(c.ffmpegPath) {
		info, err := os.Stat(c.ffmpegPath)
		if err != nil {
			return fmt.Errorf("ffmpeg not found at %s: %w", c.ffmpegPath, err)
		}
		if info.IsDir() {
			return fmt.Errorf("ffmpeg path %s is a directory", c.ffmpegPath)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	if _, err := c.runner.Output(ctx, c.ffmpegPath, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// Ensure Cutter implements media.Cutter
var _ media.Cutter = (*Cutter)(nil)
