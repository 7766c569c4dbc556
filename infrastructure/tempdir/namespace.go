// Package tempdir manages the temp directory shared by in-flight cuts and the janitor.
package tempdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stream-cutter/domain/media"

	"github.com/google/uuid"
)

const reserveAttempts = 5

// Namespace implements media.TempNamespace on the local filesystem
type Namespace struct {
	dir      string
	now      func() time.Time
	newToken func() string

	once    sync.Once
	initErr error

	mu       sync.Mutex
	reserved map[string]struct{}
}

// Option is a functional option for configuring Namespace
type Option func(*Namespace)

// WithClock sets the clock used for output names and ages (for testing)
func WithClock(now func() time.Time) Option {
	return func(n *Namespace) {
		n.now = now
	}
}

// WithTokenGenerator sets the unique token source (for testing)
func WithTokenGenerator(gen func() string) Option {
	return func(n *Namespace) {
		n.newToken = gen
	}
}

// New creates a namespace rooted at dir; relative paths are resolved against the working directory
func New(dir string, opts ...Option) (*Namespace, error) {
	if dir == "" {
		return nil, fmt.Errorf("temp directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp directory %q: %w", dir, err)
	}

	n := &Namespace{
		dir:      abs,
		now:      time.Now,
		newToken: uuid.NewString,
		reserved: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Dir returns the absolute temp directory
func (n *Namespace) Dir() string {
	return n.dir
}

// EnsureDir creates the temp directory and its parents once
func (n *Namespace) EnsureDir() error {
	n.once.Do(func() {
		if err := os.MkdirAll(n.dir, 0o755); err != nil {
			n.initErr = fmt.Errorf("failed to create temp directory: %w", err)
		}
	})
	return n.initErr
}

// Reserve returns a path that does not exist on disk and is not reserved by another request.
// Inputs are named <token><ext>; outputs <token>_<stem>_<yyyyMMddHHmm><ext> with Name set
// to the human-readable <stem>_<yyyyMMddHHmm><ext>.
func (n *Namespace) Reserve(purpose media.Purpose, originalName string) (*media.TempFile, error) {
	if err := n.EnsureDir(); err != nil {
		return nil, err
	}

	now := n.now()
	_, ext := media.SplitFileName(originalName)
	displayName := media.OutputFileName(originalName, now)

	n.mu.Lock()
	defer n.mu.Unlock()

	for i := 0; i < reserveAttempts; i++ {
		token := n.newToken()

		var name string
		switch purpose {
		case media.PurposeInput:
			name = token + ext
		case media.PurposeOutput:
			name = token + "_" + displayName
		default:
			return nil, fmt.Errorf("unknown temp file purpose %q", purpose)
		}

		path := filepath.Join(n.dir, name)
		if _, taken := n.reserved[path]; taken {
			continue
		}
		if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}

		n.reserved[path] = struct{}{}

		tf := &media.TempFile{
			Path:      path,
			Name:      name,
			Purpose:   purpose,
			CreatedAt: now,
		}
		if purpose == media.PurposeOutput {
			tf.Name = displayName
		}
		return tf, nil
	}

	return nil, fmt.Errorf("could not reserve a unique %s path after %d attempts", purpose, reserveAttempts)
}

// Create opens path for writing; it fails if the file already exists
func (n *Namespace) Create(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return f, nil
}

// Release drops the reservation for path
func (n *Namespace) Release(path string) {
	n.mu.Lock()
	delete(n.reserved, path)
	n.mu.Unlock()
}

// InUse reports whether path is still reserved
func (n *Namespace) InUse(path string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.reserved[path]
	return ok
}

// Delete removes path and its reservation; a missing file is not an error
func (n *Namespace) Delete(path string) error {
	n.Release(path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete temp file %s: %w", path, err)
	}
	return nil
}

// ListWithAges lists regular files directly inside the temp directory.
// Age is measured from the modification time. A missing directory yields no entries.
func (n *Namespace) ListWithAges() ([]media.AgedFile, error) {
	entries, err := os.ReadDir(n.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list temp directory: %w", err)
	}

	now := n.now()
	files := make([]media.AgedFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		files = append(files, media.AgedFile{
			Path: filepath.Join(n.dir, entry.Name()),
			Age:  now.Sub(info.ModTime()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// Ensure Namespace implements media.TempNamespace
var _ media.TempNamespace = (*Namespace)(nil)
