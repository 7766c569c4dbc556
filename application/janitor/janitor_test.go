package janitor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/tempdir"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock implementations for testing ---

// mockNamespace implements media.TempNamespace for testing
type mockNamespace struct {
	mu        sync.Mutex
	files     []media.AgedFile
	listErr   error
	deleteErr map[string]error
	inUse     map[string]bool
	deleted   []string
	lists     int32
}

func (m *mockNamespace) Reserve(purpose media.Purpose, originalName string) (*media.TempFile, error) {
	return nil, errors.New("not supported")
}

func (m *mockNamespace) Create(path string) (io.WriteCloser, error) {
	return nil, errors.New("not supported")
}

func (m *mockNamespace) Release(path string) {}

func (m *mockNamespace) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[path]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockNamespace) ListWithAges() ([]media.AgedFile, error) {
	atomic.AddInt32(&m.lists, 1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.files, nil
}

func (m *mockNamespace) InUse(path string) bool {
	return m.inUse[path]
}

func writeAged(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatal(err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJanitor_Sweep_DeletesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	ns, err := tempdir.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	old := writeAged(t, dir, "old.mp4", 100, 2*time.Hour)
	oldOutput := writeAged(t, dir, "tok_clip_202610161430.mp4", 50, 90*time.Minute)
	young := writeAged(t, dir, "young.mp4", 10, 5*time.Minute)

	j := New(ns, time.Hour, time.Hour, WithLogger(zap.NewNop()))
	result, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", result.Scanned)
	}
	if len(result.DeletedFiles) != 2 {
		t.Errorf("deleted %d files, want 2", len(result.DeletedFiles))
	}
	if result.FreedBytes != 150 {
		t.Errorf("FreedBytes = %d, want 150", result.FreedBytes)
	}

	for _, p := range []string{old, oldOutput} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be deleted", p)
		}
	}
	if _, err := os.Stat(young); err != nil {
		t.Errorf("young file should remain: %v", err)
	}

	// Deleting an already-deleted path is a no-op
	if err := ns.Delete(old); err != nil {
		t.Errorf("second delete returned %v", err)
	}
}

func TestJanitor_Sweep_SkipsFilesHeldByCuts(t *testing.T) {
	dir := t.TempDir()
	ns, err := tempdir.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	tf, err := ns.Reserve(media.PurposeInput, "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	w, err := ns.Create(tf.Path)
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Close()
	mod := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(tf.Path, mod, mod); err != nil {
		t.Fatal(err)
	}

	j := New(ns, time.Hour, time.Hour, WithLogger(zap.NewNop()))
	result, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.SkippedInUse != 1 || len(result.DeletedFiles) != 0 {
		t.Errorf("result = %+v, want one skipped file", result)
	}
	if _, err := os.Stat(tf.Path); err != nil {
		t.Errorf("held file should remain: %v", err)
	}

	ns.Release(tf.Path)
	result, err = j.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.DeletedFiles) != 1 {
		t.Errorf("released file should be reclaimed, result = %+v", result)
	}
}

func TestJanitor_Sweep_ContinuesPastDeleteFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ns := &mockNamespace{
		files: []media.AgedFile{
			{Path: "/tmp/a", Age: 2 * time.Hour, Size: 1},
			{Path: "/tmp/b", Age: 2 * time.Hour, Size: 2},
			{Path: "/tmp/c", Age: 2 * time.Hour, Size: 4},
		},
		deleteErr: map[string]error{"/tmp/b": errors.New("permission denied")},
	}

	j := New(ns, time.Hour, time.Hour, WithLogger(zap.New(core)))
	result, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if result.FreedBytes != 5 {
		t.Errorf("FreedBytes = %d, want 5", result.FreedBytes)
	}
	if len(ns.deleted) != 2 {
		t.Errorf("deleted = %v, want /tmp/a and /tmp/c", ns.deleted)
	}
	if logs.FilterMessage("temp file reclaimed").Len() != 2 {
		t.Error("expected two reclaimed log entries")
	}
	if logs.FilterMessage("sweep completed").Len() != 1 {
		t.Error("expected a sweep completed log entry")
	}
}

func TestJanitor_Sweep_RetentionBoundary(t *testing.T) {
	ns := &mockNamespace{
		files: []media.AgedFile{
			{Path: "/tmp/exact", Age: time.Hour},
			{Path: "/tmp/over", Age: time.Hour + time.Millisecond},
		},
	}

	j := New(ns, time.Hour, time.Hour, WithLogger(zap.NewNop()))
	result, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.DeletedFiles) != 1 || result.DeletedFiles[0].Path != "/tmp/over" {
		t.Errorf("DeletedFiles = %+v, want only /tmp/over", result.DeletedFiles)
	}
}

func TestJanitor_Sweep_ListFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ns := &mockNamespace{listErr: errors.New("input/output error")}

	j := New(ns, time.Hour, time.Hour, WithLogger(zap.New(core)))
	result, err := j.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if logs.FilterMessage("sweep failed").Len() != 1 {
		t.Error("expected a sweep failed log entry")
	}
}

func TestJanitor_RunSurvivesFailedSweeps(t *testing.T) {
	ns := &mockNamespace{listErr: errors.New("transient")}
	j := New(ns, 10*time.Millisecond, time.Hour, WithLogger(zap.NewNop()))

	j.Start(context.Background())
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&ns.lists) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()

	if got := atomic.LoadInt32(&ns.lists); got < 3 {
		t.Errorf("sweeps attempted = %d, want at least 3", got)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	ns := &mockNamespace{}
	j := New(ns, time.Hour, time.Hour, WithLogger(zap.NewNop()))

	// Stop before Start is a no-op
	j.Stop()

	j.Start(context.Background())
	j.Start(context.Background())

	done := make(chan struct{})
	go func() {
		j.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if got := atomic.LoadInt32(&ns.lists); got != 0 {
		t.Errorf("no tick elapsed, but %d sweeps ran", got)
	}

	// The janitor can be restarted after a stop
	j.Start(context.Background())
	j.Stop()
}

func TestJanitor_StopsWhenParentContextEnds(t *testing.T) {
	ns := &mockNamespace{}
	j := New(ns, time.Hour, time.Hour, WithLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(finished)
	}()
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
