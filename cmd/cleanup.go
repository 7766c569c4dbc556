package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stream-cutter/domain/media"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reclaim stale temp files now",
	Long: `Delete every file in the temp directory older than the configured retention age.

Example:
  stream-cutter cleanup`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

// Sweeper reclaims stale temp files
type Sweeper interface {
	Sweep(ctx context.Context) (*media.SweepResult, error)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	stack, err := newCutStack(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Reclaiming files older than %s in %s...\n", stack.janitor.Retention(), stack.namespace.Dir())
	return RunCleanupWithDependencies(cmd.Context(), stack.janitor, os.Stdout)
}

// RunCleanupWithDependencies runs one sweep with injected dependencies (for testing)
func RunCleanupWithDependencies(ctx context.Context, sweeper Sweeper, output io.Writer) error {
	result, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}

	for _, f := range result.DeletedFiles {
		fmt.Fprintf(output, "  Deleted %s (%.1f MB)\n", filepath.Base(f.Path), float64(f.Size)/1024/1024)
	}
	if result.SkippedInUse > 0 {
		fmt.Fprintf(output, "  Skipped %d file(s) still in use\n", result.SkippedInUse)
	}
	if result.Failed > 0 {
		fmt.Fprintf(output, "  Failed to delete %d file(s); see log for details\n", result.Failed)
	}

	fmt.Fprintf(output, "Deleted %d file(s), freed %.1f MB\n",
		len(result.DeletedFiles), float64(result.FreedBytes)/1024/1024)
	return nil
}
