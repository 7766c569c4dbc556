package distribution

import (
	"context"
	"fmt"
	"io"
	"os"

	"stream-cutter/domain/distribution"
	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/logging"

	"go.uber.org/zap"
)

// PublishService uploads finished cuts to a Google Drive folder with public sharing
type PublishService struct {
	driveClient distribution.DriveClient
	folderID    string
	output      io.Writer
}

// NewPublishService creates a new publish service
func NewPublishService(client distribution.DriveClient, folderID string, output io.Writer) *PublishService {
	if output == nil {
		output = io.Discard
	}
	return &PublishService{
		driveClient: client,
		folderID:    folderID,
		output:      output,
	}
}

// Publish uploads a local cut under req.FileName, replacing any file of the same name in the folder
func (s *PublishService) Publish(ctx context.Context, req distribution.PublishRequest) (*distribution.UploadResult, error) {
	localPath, fileName := req.LocalPath, req.FileName

	if s.folderID == "" {
		return nil, fmt.Errorf("drive folder ID is not configured")
	}

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", localPath)
	}

	existing, err := s.driveClient.FindFileByName(ctx, s.folderID, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing file: %w", err)
	}
	if existing != nil {
		fmt.Fprintf(s.output, "Replacing existing %s (%.1f MB)\n", existing.Name, float64(existing.Size)/1024/1024)
		if err := s.driveClient.DeletePermanently(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete existing file %s: %w", existing.Name, err)
		}
	}

	upload := distribution.UploadRequest{
		LocalPath:   localPath,
		FileName:    fileName,
		FolderID:    s.folderID,
		MimeType:    media.ContentTypeFor(fileName),
		Description: req.Description(),
	}

	result, err := s.driveClient.UploadAndShare(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to upload and share %s: %w", fileName, err)
	}

	logging.WithContext(ctx).Info("cut published",
		zap.String("file", result.FileName),
		zap.String("file_id", result.FileID),
		zap.Int64("bytes", result.Size),
	)
	return result, nil
}
