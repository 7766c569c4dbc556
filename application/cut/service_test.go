package cut

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/filesystem"
	"stream-cutter/infrastructure/logging"
	"stream-cutter/infrastructure/tempdir"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock implementations for testing ---

// mockCutter implements media.Cutter for testing.
// By default it writes outputBytes to the job's output path and exits 0.
type mockCutter struct {
	mu          sync.Mutex
	jobs        []media.CutJob
	inputSeen   []byte
	outputBytes []byte
	outcome     *media.ProcessOutcome
	err         error
	skipWrite   bool
}

func (m *mockCutter) Cut(ctx context.Context, job media.CutJob) (*media.ProcessOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)

	if m.err != nil {
		return nil, m.err
	}

	if data, err := os.ReadFile(job.InputPath); err == nil {
		m.inputSeen = data
	}

	if !m.skipWrite {
		if err := os.WriteFile(job.OutputPath, m.outputBytes, 0o600); err != nil {
			return nil, err
		}
	}

	if m.outcome != nil {
		return m.outcome, nil
	}
	return &media.ProcessOutcome{ExitCode: 0}, nil
}

func (m *mockCutter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// failingNamespace wraps a namespace and fails Create
type failingNamespace struct {
	media.TempNamespace
	createErr error
}

func (f *failingNamespace) Create(path string) (io.WriteCloser, error) {
	return nil, f.createErr
}

var testClock = time.Date(2026, 10, 16, 14, 30, 0, 0, time.Local)

type fixture struct {
	dir     string
	ns      *tempdir.Namespace
	cutter  *mockCutter
	service *Service
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "temp")
	ns, err := tempdir.New(dir, tempdir.WithClock(func() time.Time { return testClock }))
	if err != nil {
		t.Fatalf("tempdir.New: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	cutter := &mockCutter{outputBytes: []byte("cut media bytes")}
	svc := NewService(ns, cutter, filesystem.NewChecker(), Settings{
		AllowedTypes:     []string{"video/mp4", "audio/mpeg", ".mkv"},
		MaxFileSizeBytes: maxBytes,
	}, WithLogger(zap.New(core)))

	return &fixture{dir: dir, ns: ns, cutter: cutter, service: svc, logs: logs}
}

func (f *fixture) remaining(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newRequest(name, contentType string, body []byte, start, end float64) *media.CutRequest {
	return &media.CutRequest{
		Source:              bytes.NewReader(body),
		OriginalFileName:    name,
		DeclaredContentType: contentType,
		SizeBytes:           int64(len(body)),
		StartSeconds:        start,
		EndSeconds:          end,
	}
}

func TestService_Cut_Success(t *testing.T) {
	f := newFixture(t, 10*1024*1024)
	body := bytes.Repeat([]byte("x"), 5*1024*1024)

	result, err := f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", body, 2.0, 5.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatalf("Success = false, message %q", result.Message)
	}
	if result.OutputFileName != "clip_202610161430.mp4" {
		t.Errorf("OutputFileName = %q, want clip_202610161430.mp4", result.OutputFileName)
	}
	if result.OutputSize != int64(len("cut media bytes")) {
		t.Errorf("OutputSize = %d", result.OutputSize)
	}

	info, err := os.Stat(result.OutputPath)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output is empty")
	}

	job := f.cutter.jobs[0]
	if job.Range.Start.String() != "00:00:02.000" || job.Range.Duration.String() != "00:00:03.500" {
		t.Errorf("range = %s +%s, want 00:00:02.000 +00:00:03.500", job.Range.Start, job.Range.Duration)
	}
	if job.OutputPath != result.OutputPath {
		t.Errorf("job output %q != result output %q", job.OutputPath, result.OutputPath)
	}
	if !bytes.Equal(f.cutter.inputSeen, body) {
		t.Errorf("tool saw %d input bytes, want %d", len(f.cutter.inputSeen), len(body))
	}

	if _, err := os.Stat(job.InputPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("input %s should be deleted, stat err = %v", job.InputPath, err)
	}
	if f.ns.InUse(result.OutputPath) {
		t.Error("output reservation should be released to the caller")
	}

	remaining := f.remaining(t)
	if len(remaining) != 1 || remaining[0] != filepath.Base(result.OutputPath) {
		t.Errorf("remaining files = %v, want only the output", remaining)
	}

	if f.logs.FilterMessage("cut succeeded").Len() != 1 {
		t.Error("expected a cut succeeded log entry")
	}
}

func TestService_Cut_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		req      *media.CutRequest
		wantKind media.Kind
	}{
		{
			name:     "end before start",
			req:      newRequest("clip.mp4", "video/mp4", []byte("data"), 5, 2),
			wantKind: media.KindInvalidRange,
		},
		{
			name:     "end equals start",
			req:      newRequest("clip.mp4", "video/mp4", []byte("data"), 3, 3),
			wantKind: media.KindInvalidRange,
		},
		{
			name:     "negative start",
			req:      newRequest("clip.mp4", "video/mp4", []byte("data"), -1, 3),
			wantKind: media.KindInvalidRange,
		},
		{
			name:     "unsupported type",
			req:      newRequest("notes.txt", "text/plain", []byte("data"), 0, 1),
			wantKind: media.KindUnsupportedType,
		},
		{
			name: "declared size too large",
			req: &media.CutRequest{
				Source:              bytes.NewReader([]byte("data")),
				OriginalFileName:    "clip.mp4",
				DeclaredContentType: "video/mp4",
				SizeBytes:           2048,
				EndSeconds:          1,
			},
			wantKind: media.KindTooLarge,
		},
		{
			name:     "extension fallback still checks range",
			req:      newRequest("movie.MKV", "application/octet-stream", []byte("data"), 4, 1),
			wantKind: media.KindInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1024)

			result, err := f.service.Cut(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}

			cutErr, ok := media.AsCutError(err)
			if !ok {
				t.Fatalf("error = %T, want *media.CutError", err)
			}
			if cutErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", cutErr.Kind, tt.wantKind)
			}
			if !cutErr.IsValidation() {
				t.Error("expected a validation failure")
			}
			if result == nil || result.Success {
				t.Fatalf("result = %+v, want unsuccessful result", result)
			}
			if result.Message != cutErr.UserMessage() {
				t.Errorf("Message = %q, want %q", result.Message, cutErr.UserMessage())
			}
			if f.cutter.calls() != 0 {
				t.Error("cutter should not run")
			}
			// Validation never touches disk, not even to create the temp dir
			if _, err := os.Stat(f.dir); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("temp dir should not exist, stat err = %v", err)
			}
		})
	}
}

func TestService_Cut_UnderstatedSizeIsTooLarge(t *testing.T) {
	f := newFixture(t, 1024)
	req := newRequest("clip.mp4", "video/mp4", bytes.Repeat([]byte("x"), 4096), 0, 1)
	req.SizeBytes = 10

	_, err := f.service.Cut(context.Background(), req)
	if !errors.Is(err, media.ErrTooLarge) {
		t.Fatalf("error = %v, want TooLarge", err)
	}
	if f.cutter.calls() != 0 {
		t.Error("cutter should not run")
	}
	if left := f.remaining(t); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestService_Cut_ExactLimitIsAccepted(t *testing.T) {
	f := newFixture(t, 1024)

	result, err := f.service.Cut(context.Background(), newRequest("song.mp3", "audio/mpeg", bytes.Repeat([]byte("a"), 1024), 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success at the exact size limit")
	}
}

func TestService_Cut_ExecutionFailures(t *testing.T) {
	tests := []struct {
		name        string
		configure   func(m *mockCutter)
		wantKind    media.Kind
		wantMessage string
	}{
		{
			name: "spawn error",
			configure: func(m *mockCutter) {
				m.err = &media.SpawnError{Binary: "/missing/ffmpeg", Err: os.ErrNotExist}
			},
			wantKind:    media.KindSpawn,
			wantMessage: "media processor is unavailable; check the configured binary path",
		},
		{
			name: "non-zero exit leaves partial output",
			configure: func(m *mockCutter) {
				m.outcome = &media.ProcessOutcome{ExitCode: 1, StderrLines: []string{"Invalid data found when processing input"}}
			},
			wantKind:    media.KindNonZeroExit,
			wantMessage: "media processor failed to cut the file",
		},
		{
			name: "timed out",
			configure: func(m *mockCutter) {
				m.outcome = &media.ProcessOutcome{ExitCode: -1, TimedOut: true}
			},
			wantKind:    media.KindTimedOut,
			wantMessage: "media processing timed out",
		},
		{
			name: "zero exit without output",
			configure: func(m *mockCutter) {
				m.skipWrite = true
			},
			wantKind:    media.KindEmptyOutput,
			wantMessage: "media processor produced no output",
		},
		{
			name: "zero exit with empty output",
			configure: func(m *mockCutter) {
				m.outputBytes = nil
			},
			wantKind:    media.KindEmptyOutput,
			wantMessage: "media processor produced no output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1024*1024)
			tt.configure(f.cutter)

			result, err := f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", []byte("media"), 2, 5.5))
			if err == nil {
				t.Fatal("expected error")
			}

			cutErr, ok := media.AsCutError(err)
			if !ok {
				t.Fatalf("error = %T, want *media.CutError", err)
			}
			if cutErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", cutErr.Kind, tt.wantKind)
			}
			if result.Success {
				t.Error("Success = true, want false")
			}
			if result.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", result.Message, tt.wantMessage)
			}
			if result.OutputPath != "" {
				t.Errorf("OutputPath = %q, want empty", result.OutputPath)
			}
			if left := f.remaining(t); len(left) != 0 {
				t.Errorf("temp files left behind: %v", left)
			}
			if f.logs.FilterMessage("cut failed").Len() != 1 {
				t.Error("expected a cut failed log entry")
			}
		})
	}
}

func TestService_Cut_SpawnErrorIsDistinguishable(t *testing.T) {
	f := newFixture(t, 1024)
	f.cutter.err = &media.SpawnError{Binary: "ffmpeg", Err: errors.New("executable file not found in $PATH")}

	result, err := f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", []byte("media"), 0, 1))

	var spawnErr *media.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want wrapped *media.SpawnError", err)
	}
	if !errors.Is(err, media.ErrSpawn) {
		t.Error("errors.Is(err, ErrSpawn) = false")
	}
	if errors.Is(err, media.ErrNonZeroExit) {
		t.Error("spawn failure must not look like an execution failure")
	}
	if strings.Contains(result.Message, "$PATH") {
		t.Errorf("user message leaks internal detail: %q", result.Message)
	}
}

func TestService_Cut_StorageFailures(t *testing.T) {
	tests := []struct {
		name      string
		createErr error
		source    io.Reader
	}{
		{
			name:      "input file cannot be created",
			createErr: errors.New("no space left on device"),
			source:    strings.NewReader("media"),
		},
		{
			name:   "upload stream fails part way",
			source: io.MultiReader(strings.NewReader("partial bytes"), iotest.ErrReader(errors.New("connection reset"))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1024)
			ns := media.TempNamespace(f.ns)
			if tt.createErr != nil {
				ns = &failingNamespace{TempNamespace: f.ns, createErr: tt.createErr}
			}
			svc := NewService(ns, f.cutter, filesystem.NewChecker(), f.service.settings, WithLogger(zap.NewNop()))

			req := newRequest("clip.mp4", "video/mp4", nil, 0, 1)
			req.Source = tt.source
			req.SizeBytes = 100

			result, err := svc.Cut(context.Background(), req)
			if !errors.Is(err, media.ErrStorage) {
				t.Fatalf("error = %v, want StorageError", err)
			}
			if result.Message != "could not store the uploaded file" {
				t.Errorf("Message = %q", result.Message)
			}
			if f.cutter.calls() != 0 {
				t.Error("cutter should not run")
			}
			if left := f.remaining(t); len(left) != 0 {
				t.Errorf("temp files left behind: %v", left)
			}
		})
	}
}

func TestService_Cut_UnboundedLimitKeepsWholeUpload(t *testing.T) {
	f := newFixture(t, math.MaxInt64)
	body := []byte("media bytes")

	if _, err := f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", body, 0, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(f.cutter.inputSeen, body) {
		t.Errorf("cutter saw input %q, want %q", f.cutter.inputSeen, body)
	}
}

func TestService_Cut_RequestIDInLogs(t *testing.T) {
	t.Run("taken from context", func(t *testing.T) {
		f := newFixture(t, 1024)
		ctx := logging.WithRequestID(context.Background(), "req-7")

		if _, err := f.service.Cut(ctx, newRequest("clip.mp4", "video/mp4", []byte("media"), 0, 1)); err != nil {
			t.Fatal(err)
		}
		for _, entry := range f.logs.All() {
			if got := entry.ContextMap()["request_id"]; got != "req-7" {
				t.Fatalf("%q request_id = %v, want req-7", entry.Message, got)
			}
		}
	})

	t.Run("generated when absent", func(t *testing.T) {
		f := newFixture(t, 1024)

		if _, err := f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", []byte("media"), 0, 1)); err != nil {
			t.Fatal(err)
		}
		entries := f.logs.All()
		if len(entries) == 0 {
			t.Fatal("no log entries")
		}
		first, _ := entries[0].ContextMap()["request_id"].(string)
		if first == "" {
			t.Fatal("missing request_id")
		}
		for _, entry := range entries {
			if got := entry.ContextMap()["request_id"]; got != first {
				t.Errorf("%q request_id = %v, want %s", entry.Message, got, first)
			}
		}
	})
}

func TestService_Cut_Concurrent(t *testing.T) {
	f := newFixture(t, 1024*1024)

	const n = 20
	var wg sync.WaitGroup
	results := make([]*media.CutResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(fmt.Sprintf("upload-%d", i))
			results[i], errs[i] = f.service.Cut(context.Background(), newRequest("clip.mp4", "video/mp4", body, 0, 1))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("cut %d failed: %v", i, errs[i])
		}
		if seen[results[i].OutputPath] {
			t.Fatalf("output path %s issued twice", results[i].OutputPath)
		}
		seen[results[i].OutputPath] = true
	}

	if left := f.remaining(t); len(left) != n {
		t.Errorf("remaining files = %d, want %d outputs", len(left), n)
	}
}
