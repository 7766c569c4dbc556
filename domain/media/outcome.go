package media

import "context"

// ProcessOutcome is the result of a single external process invocation
type ProcessOutcome struct {
	ExitCode    int
	TimedOut    bool
	StdoutLines []string
	StderrLines []string
}

// Succeeded returns true if the process exited on its own with status 0
func (o *ProcessOutcome) Succeeded() bool {
	return !o.TimedOut && o.ExitCode == 0
}

// CutJob describes a single invocation of the cutter binary
type CutJob struct {
	InputPath  string
	OutputPath string
	Range      TimeRange
}

// Cutter defines the interface for cutting a time range out of a media file.
// This is a port that can be implemented by different infrastructure adapters.
type Cutter interface {
	// Cut runs the external tool; it fails only with *SpawnError when the tool cannot start
	Cut(ctx context.Context, job CutJob) (*ProcessOutcome, error)
}

// CutResult is the terminal value returned to the caller of a cut.
// On success the caller owns OutputPath and is responsible for deleting it.
type CutResult struct {
	Success        bool
	Message        string
	OutputPath     string
	OutputFileName string
	OutputSize     int64
}

// SweepResult contains information about files reclaimed by one janitor sweep
type SweepResult struct {
	Scanned      int
	DeletedFiles []DeletedFile
	SkippedInUse int
	Failed       int
	FreedBytes   int64
}

// DeletedFile represents a reclaimed temp file
type DeletedFile struct {
	Path string
	Size int64
}
