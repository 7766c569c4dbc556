package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/logging"
	"stream-cutter/infrastructure/metrics"

	"go.uber.org/zap"
)

// Janitor periodically reclaims temp files older than the retention age.
// It never coordinates with in-flight cuts beyond skipping paths they still hold.
type Janitor struct {
	namespace media.TempNamespace
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	sweepMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Option is a functional option for configuring Janitor
type Option func(*Janitor)

// WithLogger sets the logger (defaults to the global logger)
func WithLogger(logger *zap.Logger) Option {
	return func(j *Janitor) {
		j.logger = logger
	}
}

// New creates a Janitor sweeping every interval for files older than retention
func New(namespace media.TempNamespace, interval, retention time.Duration, opts ...Option) *Janitor {
	j := &Janitor{
		namespace: namespace,
		interval:  interval,
		retention: retention,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = logging.L()
	}
	j.logger = j.logger.With(zap.String("component", "janitor"))
	return j
}

// Retention returns the minimum age of a file before it is reclaimed
func (j *Janitor) Retention() time.Duration {
	return j.retention
}

// Sweep deletes every temp file whose age exceeds the retention age.
// Per-file failures are logged and counted; only a failed listing is returned as an error.
func (j *Janitor) Sweep(ctx context.Context) (*media.SweepResult, error) {
	j.sweepMu.Lock()
	defer j.sweepMu.Unlock()

	files, err := j.namespace.ListWithAges()
	if err != nil {
		j.logger.Error("sweep failed", zap.Error(err))
		metrics.RecordSweep(false, 0, 0)
		return nil, fmt.Errorf("failed to list temp files: %w", err)
	}

	result := &media.SweepResult{Scanned: len(files)}
	for _, f := range files {
		if f.Age <= j.retention {
			continue
		}
		if j.namespace.InUse(f.Path) {
			result.SkippedInUse++
			j.logger.Warn("stale temp file still held by a cut",
				zap.String("path", f.Path),
				zap.Duration("age", f.Age),
			)
			continue
		}

		if err := j.namespace.Delete(f.Path); err != nil {
			result.Failed++
			j.logger.Warn("failed to reclaim temp file", zap.String("path", f.Path), zap.Error(err))
			continue
		}

		result.DeletedFiles = append(result.DeletedFiles, media.DeletedFile{Path: f.Path, Size: f.Size})
		result.FreedBytes += f.Size
		j.logger.Info("temp file reclaimed",
			zap.String("path", f.Path),
			zap.Duration("age", f.Age),
		)
	}

	metrics.RecordSweep(result.Failed == 0, len(result.DeletedFiles), result.FreedBytes)
	j.logger.Info("sweep completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", len(result.DeletedFiles)),
		zap.Int64("freed_bytes", result.FreedBytes),
		zap.Int("skipped_in_use", result.SkippedInUse),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Run sweeps on every tick until ctx is done. A failed sweep does not stop the loop.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			// A sweep in progress is never interrupted
			_, _ = j.Sweep(context.WithoutCancel(ctx))
		}
	}
}

// Start runs the loop in the background. Calling Start on a running janitor is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.stopped = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		j.Run(ctx)
	}(j.stopped)
}

// Stop cancels the wait for the next tick and blocks until the loop has exited,
// letting a sweep already in progress finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, stopped := j.cancel, j.stopped
	j.cancel, j.stopped = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}
