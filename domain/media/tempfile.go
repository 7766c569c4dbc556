package media

import (
	"io"
	"time"
)

// Purpose identifies why a temp file was reserved
type Purpose string

const (
	PurposeInput  Purpose = "input"
	PurposeOutput Purpose = "output"
)

// TempFile is a reserved path inside the managed temp directory.
// It is owned by the cut that reserved it until consumed or reclaimed.
type TempFile struct {
	Path      string
	Name      string // user-facing name; equals the base name for inputs
	Purpose   Purpose
	CreatedAt time.Time
}

// AgedFile is a directory entry as seen by the janitor
type AgedFile struct {
	Path string
	Age  time.Duration
	Size int64
}

// TempNamespace issues collision-free paths in the temp directory and
// reclaims them. Deletes are idempotent: a missing file is not an error.
type TempNamespace interface {
	// Reserve returns a path that does not currently exist and is not held by another request
	Reserve(purpose Purpose, originalName string) (*TempFile, error)

	// Create opens a reserved path for exclusive writing
	Create(path string) (io.WriteCloser, error)

	// Release drops the in-memory reservation without touching the file
	Release(path string)

	// Delete removes the file and its reservation
	Delete(path string) error

	// ListWithAges lists the regular files in the temp directory with their age
	ListWithAges() ([]AgedFile, error)

	// InUse reports whether an in-flight request still holds the path
	InUse(path string) bool
}

// FileInspector provides read-only file metadata
type FileInspector interface {
	Exists(path string) bool
	Size(path string) (int64, error)
}
