package distribution

import (
	"fmt"

	"stream-cutter/domain/media"
)

// PublishRequest describes a finished cut to share
type PublishRequest struct {
	LocalPath  string
	FileName   string
	SourceName string
	Range      media.TimeRange
}

// Description is the text attached to the published file
func (r PublishRequest) Description() string {
	if r.SourceName == "" {
		return ""
	}
	return fmt.Sprintf("Cut %s to %s of %s", r.Range.Start, r.Range.End(), r.SourceName)
}

// UploadRequest contains the parameters needed to upload a file to Google Drive
type UploadRequest struct {
	LocalPath   string // Full path to the local file
	FileName    string // Target filename in Google Drive
	FolderID    string // Target folder ID in Google Drive
	MimeType    string
	Description string
}

// Validate checks that the request can be sent
func (r UploadRequest) Validate() error {
	if r.LocalPath == "" {
		return fmt.Errorf("local path is required")
	}
	if r.FileName == "" {
		return fmt.Errorf("file name is required")
	}
	if r.FolderID == "" {
		return fmt.Errorf("drive folder ID is required")
	}
	return nil
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	FileID       string
	FileName     string
	ShareableURL string
	Size         int64
}
