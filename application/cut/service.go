package cut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/logging"
	"stream-cutter/infrastructure/metrics"

	"go.uber.org/zap"
)

// State is a step of a single cut attempt
type State string

const (
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateExecuting  State = "executing"
	StateVerifying  State = "verifying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Settings is the read-only configuration a cut is checked against
type Settings struct {
	AllowedTypes     []string
	MaxFileSizeBytes int64
}

// Service coordinates media cut operations
type Service struct {
	namespace media.TempNamespace
	cutter    media.Cutter
	files     media.FileInspector
	settings  Settings
	logger    *zap.Logger
	now       func() time.Time
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithLogger sets the logger (defaults to the context logger)
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the clock used to measure cuts (for testing)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new cut Service
func NewService(namespace media.TempNamespace, cutter media.Cutter, files media.FileInspector, settings Settings, opts ...Option) *Service {
	s := &Service{
		namespace: namespace,
		cutter:    cutter,
		files:     files,
		settings:  settings,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attempt tracks the temp files created by one call to Cut
type attempt struct {
	svc     *Service
	logger  *zap.Logger
	created []string
}

func (a *attempt) transition(state State) {
	a.logger.Info("cut state", zap.String("state", string(state)))
}

func (a *attempt) track(path string) {
	a.created = append(a.created, path)
}

func (a *attempt) forget(path string) {
	for i, p := range a.created {
		if p == path {
			a.created = append(a.created[:i], a.created[i+1:]...)
			return
		}
	}
}

// cleanup deletes every file this attempt created; deletes are idempotent
func (a *attempt) cleanup() {
	for _, path := range a.created {
		if err := a.svc.namespace.Delete(path); err != nil {
			a.logger.Warn("failed to delete temp file", zap.String("path", path), zap.Error(err))
		}
	}
	a.created = nil
}

// Cut runs a request through validation, persistence, execution and verification.
// On success the caller owns result.OutputPath. On failure the returned error is a
// *media.CutError, the result carries its user message, and no temp file created by
// this call remains on disk.
func (s *Service) Cut(ctx context.Context, req *media.CutRequest) (*media.CutResult, error) {
	started := s.now()
	finished := metrics.CutStarted()
	defer finished()

	a := &attempt{svc: s, logger: s.loggerFor(ctx)}

	result, err := s.run(ctx, a, req)
	if err != nil {
		a.cleanup()
		a.transition(StateFailed)

		cutErr, ok := media.AsCutError(err)
		if !ok {
			cutErr = media.NewCutError(media.KindStorage, err)
		}
		a.logger.Warn("cut failed",
			zap.String("kind", string(cutErr.Kind)),
			zap.String("category", string(cutErr.Category())),
			zap.Error(cutErr.Err),
		)
		metrics.RecordCut(string(cutErr.Kind), s.now().Sub(started))
		return &media.CutResult{Success: false, Message: cutErr.UserMessage()}, cutErr
	}

	a.transition(StateSucceeded)
	elapsed := s.now().Sub(started)
	a.logger.Info("cut succeeded",
		zap.String("output", result.OutputPath),
		zap.Int64("bytes", result.OutputSize),
		zap.Duration("elapsed", elapsed),
	)
	metrics.RecordCut("success", elapsed)
	return result, nil
}

func (s *Service) run(ctx context.Context, a *attempt, req *media.CutRequest) (*media.CutResult, error) {
	a.transition(StateValidating)
	rng, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	a.transition(StatePersisting)
	input, err := s.persist(a, req)
	if err != nil {
		return nil, err
	}

	a.transition(StateExecuting)
	output, err := s.namespace.Reserve(media.PurposeOutput, req.OriginalFileName)
	if err != nil {
		return nil, media.NewCutError(media.KindStorage, fmt.Errorf("failed to reserve output path: %w", err))
	}
	a.track(output.Path)

	if err := s.execute(ctx, media.CutJob{InputPath: input.Path, OutputPath: output.Path, Range: rng}); err != nil {
		return nil, err
	}

	a.transition(StateVerifying)
	size, err := s.verify(output.Path)
	if err != nil {
		return nil, err
	}

	// Input is consumed; the output now belongs to the caller
	if err := s.namespace.Delete(input.Path); err != nil {
		a.logger.Warn("failed to delete consumed input", zap.String("path", input.Path), zap.Error(err))
	}
	a.forget(input.Path)
	s.namespace.Release(output.Path)
	a.forget(output.Path)

	return &media.CutResult{
		Success:        true,
		Message:        "cut completed",
		OutputPath:     output.Path,
		OutputFileName: output.Name,
		OutputSize:     size,
	}, nil
}

// validate performs every check that needs no disk access
func (s *Service) validate(req *media.CutRequest) (media.TimeRange, error) {
	if !media.IsAllowed(req.DeclaredContentType, req.OriginalFileName, s.settings.AllowedTypes) {
		return media.TimeRange{}, media.NewCutError(media.KindUnsupportedType,
			fmt.Errorf("file %q with content type %q is not in the allowed types", req.OriginalFileName, req.DeclaredContentType))
	}

	if !media.IsWithinSizeLimit(req.SizeBytes, s.settings.MaxFileSizeBytes) {
		return media.TimeRange{}, media.NewCutError(media.KindTooLarge,
			fmt.Errorf("declared size %d bytes exceeds limit of %d bytes", req.SizeBytes, s.settings.MaxFileSizeBytes))
	}

	rng, err := req.Range()
	if err != nil {
		return media.TimeRange{}, media.NewCutError(media.KindInvalidRange, err)
	}

	if req.Source == nil {
		return media.TimeRange{}, media.NewCutError(media.KindStorage, errors.New("upload has no content stream"))
	}

	return rng, nil
}

// persist streams the whole upload to a reserved input path
func (s *Service) persist(a *attempt, req *media.CutRequest) (*media.TempFile, error) {
	input, err := s.namespace.Reserve(media.PurposeInput, req.OriginalFileName)
	if err != nil {
		return nil, media.NewCutError(media.KindStorage, fmt.Errorf("failed to reserve input path: %w", err))
	}
	a.track(input.Path)

	w, err := s.namespace.Create(input.Path)
	if err != nil {
		return nil, media.NewCutError(media.KindStorage, fmt.Errorf("failed to create input file: %w", err))
	}

	// Read one byte past the limit so an understated declared size is still caught
	limit := s.settings.MaxFileSizeBytes
	readLimit := limit
	if limit < math.MaxInt64 {
		readLimit = limit + 1
	}
	written, copyErr := io.Copy(w, io.LimitReader(req.Source, readLimit))
	closeErr := w.Close()

	if copyErr != nil {
		return nil, media.NewCutError(media.KindStorage, fmt.Errorf("failed to write upload: %w", copyErr))
	}
	if written > limit {
		return nil, media.NewCutError(media.KindTooLarge,
			fmt.Errorf("upload exceeds limit of %d bytes", limit))
	}
	if closeErr != nil {
		return nil, media.NewCutError(media.KindStorage, fmt.Errorf("failed to flush upload: %w", closeErr))
	}

	metrics.RecordUpload(written)
	return input, nil
}

func (s *Service) execute(ctx context.Context, job media.CutJob) error {
	outcome, err := s.cutter.Cut(ctx, job)
	if err != nil {
		return media.NewCutError(media.KindSpawn, err)
	}

	if outcome.TimedOut {
		return media.NewCutError(media.KindTimedOut, errors.New("process killed after exceeding the timeout"))
	}

	if outcome.ExitCode != 0 {
		return media.NewCutError(media.KindNonZeroExit,
			fmt.Errorf("process exited with code %d: %s", outcome.ExitCode, lastLine(outcome.StderrLines)))
	}

	return nil
}

// verify confirms the tool left a non-empty output; its exit code alone is not trusted
func (s *Service) verify(path string) (int64, error) {
	if !s.files.Exists(path) {
		return 0, media.NewCutError(media.KindEmptyOutput, fmt.Errorf("output %s was not created", path))
	}

	size, err := s.files.Size(path)
	if err != nil {
		return 0, media.NewCutError(media.KindEmptyOutput, fmt.Errorf("failed to stat output: %w", err))
	}
	if size == 0 {
		return 0, media.NewCutError(media.KindEmptyOutput, fmt.Errorf("output %s is empty", path))
	}

	return size, nil
}

func (s *Service) loggerFor(ctx context.Context) *zap.Logger {
	if logging.GetRequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, logging.NewRequestID())
	}
	if s.logger != nil {
		return s.logger.With(zap.String("request_id", logging.GetRequestID(ctx)))
	}
	return logging.WithContext(ctx)
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return "no output"
	}
	return lines[len(lines)-1]
}
