package cmd

import (
	"fmt"

	appcut "stream-cutter/application/cut"
	"stream-cutter/application/janitor"
	"stream-cutter/infrastructure/config"
	"stream-cutter/infrastructure/ffmpeg"
	"stream-cutter/infrastructure/filesystem"
	"stream-cutter/infrastructure/tempdir"
)

// cutStack holds the production collaborators shared by serve, cut and cleanup
type cutStack struct {
	namespace *tempdir.Namespace
	cutter    *ffmpeg.Cutter
	service   *appcut.Service
	janitor   *janitor.Janitor
}

func newCutStack(cfg *config.Config) (*cutStack, error) {
	ns, err := tempdir.New(cfg.Cutter.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up temp directory: %w", err)
	}

	cutter := ffmpeg.NewCutter(
		ffmpeg.WithFFmpegPath(cfg.Cutter.BinaryPath),
		ffmpeg.WithTimeout(cfg.Cutter.Timeout),
	)

	service := appcut.NewService(ns, cutter, filesystem.NewChecker(), appcut.Settings{
		AllowedTypes:     cfg.Cutter.AllowedTypes,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes(),
	})

	return &cutStack{
		namespace: ns,
		cutter:    cutter,
		service:   service,
		janitor:   janitor.New(ns, cfg.Cleanup.Interval, cfg.Cleanup.RetentionAge),
	}, nil
}
