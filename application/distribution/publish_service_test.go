package distribution

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stream-cutter/domain/distribution"
	"stream-cutter/domain/media"
)

// mockDriveClient implements distribution.DriveClient for testing
type mockDriveClient struct {
	files      map[string]*distribution.FileInfo // keyed by fileName
	findErr    error
	deleteErr  error
	uploadErr  error
	deletedIDs []string
	uploads    []distribution.UploadRequest
}

func newMockDriveClient() *mockDriveClient {
	return &mockDriveClient{files: make(map[string]*distribution.FileInfo)}
}

func (m *mockDriveClient) FindFileByName(ctx context.Context, folderID, fileName string) (*distribution.FileInfo, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if file, ok := m.files[fileName]; ok {
		return file, nil
	}
	return nil, nil // Not found is not an error
}

func (m *mockDriveClient) DeletePermanently(ctx context.Context, fileID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedIDs = append(m.deletedIDs, fileID)
	return nil
}

func (m *mockDriveClient) UploadAndShare(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads = append(m.uploads, req)
	return &distribution.UploadResult{
		FileID:       "test-file-id",
		FileName:     req.FileName,
		ShareableURL: "https://drive.google.com/file/d/test-file-id/view",
		Size:         1024,
	}, nil
}

func writeCut(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token_clip_202610161430.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublishService_Publish(t *testing.T) {
	client := newMockDriveClient()
	svc := NewPublishService(client, "folder-id", nil)
	path := writeCut(t)

	rng, err := media.NewTimeRange(2, 5.5)
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Publish(context.Background(), distribution.PublishRequest{
		LocalPath:  path,
		FileName:   "clip_202610161430.mp4",
		SourceName: "clip.mp4",
		Range:      rng,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ShareableURL != "https://drive.google.com/file/d/test-file-id/view" {
		t.Errorf("ShareableURL = %q", result.ShareableURL)
	}
	if len(client.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(client.uploads))
	}
	req := client.uploads[0]
	if req.FileName != "clip_202610161430.mp4" || req.LocalPath != path || req.FolderID != "folder-id" {
		t.Errorf("upload request = %+v", req)
	}
	if req.MimeType != "video/mp4" {
		t.Errorf("MimeType = %q, want video/mp4", req.MimeType)
	}
	if req.Description != "Cut 00:00:02.000 to 00:00:05.500 of clip.mp4" {
		t.Errorf("Description = %q", req.Description)
	}
}

func TestPublishService_ReplacesExisting(t *testing.T) {
	client := newMockDriveClient()
	client.files["clip_202610161430.mp4"] = &distribution.FileInfo{ID: "old-id", Name: "clip_202610161430.mp4", Size: 2 * 1024 * 1024}
	var out bytes.Buffer
	svc := NewPublishService(client, "folder-id", &out)

	if _, err := svc.Publish(context.Background(), distribution.PublishRequest{LocalPath: writeCut(t), FileName: "clip_202610161430.mp4"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.deletedIDs) != 1 || client.deletedIDs[0] != "old-id" {
		t.Errorf("deletedIDs = %v, want [old-id]", client.deletedIDs)
	}
	if !strings.Contains(out.String(), "Replacing existing clip_202610161430.mp4 (2.0 MB)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPublishService_Errors(t *testing.T) {
	tests := []struct {
		name      string
		folderID  string
		configure func(m *mockDriveClient)
		missing   bool
		wantErr   string
	}{
		{name: "no folder configured", folderID: "", wantErr: "folder ID is not configured"},
		{name: "missing file", folderID: "f", missing: true, wantErr: "file does not exist"},
		{name: "lookup fails", folderID: "f", configure: func(m *mockDriveClient) { m.findErr = errors.New("boom") }, wantErr: "check for existing"},
		{
			name:     "delete fails",
			folderID: "f",
			configure: func(m *mockDriveClient) {
				m.files["clip.mp4"] = &distribution.FileInfo{ID: "x", Name: "clip.mp4"}
				m.deleteErr = errors.New("boom")
			},
			wantErr: "failed to delete existing",
		},
		{name: "upload fails", folderID: "f", configure: func(m *mockDriveClient) { m.uploadErr = errors.New("boom") }, wantErr: "failed to upload and share"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockDriveClient()
			if tt.configure != nil {
				tt.configure(client)
			}
			svc := NewPublishService(client, tt.folderID, nil)

			path := writeCut(t)
			if tt.missing {
				path = filepath.Join(t.TempDir(), "gone.mp4")
			}

			_, err := svc.Publish(context.Background(), distribution.PublishRequest{LocalPath: path, FileName: "clip.mp4"})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
