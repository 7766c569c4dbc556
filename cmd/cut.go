package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	appdist "stream-cutter/application/distribution"
	"stream-cutter/domain/distribution"
	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/drive"

	"github.com/spf13/cobra"
)

var (
	cutInputPath string
	cutStartTime string
	cutEndTime   string
	cutOutDir    string
	cutPublish   bool
)

var cutCmd = &cobra.Command{
	Use:   "cut",
	Short: "Cut a time range out of a local media file",
	Long: `Cut a time range out of a local audio or video file without re-encoding.

Start and end accept seconds (2.5) or timecodes (HH:MM:SS or HH:MM:SS.mmm).
The output is named <name>_<yyyyMMddHHmm><ext> and written to --out, or with
--publish uploaded to the configured Google Drive folder with a shareable link.

Examples:
  stream-cutter cut --input clip.mp4 --start 2 --end 5.5
  stream-cutter cut --input "talk.mp3" --start 00:01:00 --end 00:02:30.250 --out ./cuts
  stream-cutter cut --input recording.mp4 --start 00:05:30 --end 01:15:00 --publish`,
	RunE: runCut,
}

func init() {
	rootCmd.AddCommand(cutCmd)
	cutCmd.Flags().StringVar(&cutInputPath, "input", "", "Path to source media file (required)")
	cutCmd.Flags().StringVar(&cutStartTime, "start", "", "Start offset in seconds or HH:MM:SS[.mmm] (required)")
	cutCmd.Flags().StringVar(&cutEndTime, "end", "", "End offset in seconds or HH:MM:SS[.mmm] (required)")
	cutCmd.Flags().StringVar(&cutOutDir, "out", ".", "Directory to write the cut into")
	cutCmd.Flags().BoolVar(&cutPublish, "publish", false, "Upload the cut to Google Drive instead of writing it locally")
	cutCmd.MarkFlagRequired("input")
	cutCmd.MarkFlagRequired("start")
	cutCmd.MarkFlagRequired("end")
}

// CutRunner runs a single cut
type CutRunner interface {
	Cut(ctx context.Context, req *media.CutRequest) (*media.CutResult, error)
}

// Publisher uploads a finished cut and returns its shareable location
type Publisher interface {
	Publish(ctx context.Context, req distribution.PublishRequest) (*distribution.UploadResult, error)
}

func runCut(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	stack, err := newCutStack(cfg)
	if err != nil {
		return err
	}

	if err := stack.cutter.VerifyInstalled(cmd.Context()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	var publisher Publisher
	if cutPublish {
		client, err := drive.NewClient(cmd.Context(), cfg.Drive.CredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to create Drive client: %w", err)
		}
		publisher = appdist.NewPublishService(client, cfg.Drive.FolderID, os.Stdout)
	}

	return RunCutWithDependencies(
		cmd.Context(),
		stack.service,
		publisher,
		cutInputPath,
		cutStartTime,
		cutEndTime,
		cutOutDir,
		os.Stdout,
	)
}

// RunCutWithDependencies runs the cut command with injected dependencies (for testing).
// A nil publisher moves the output into outDir.
func RunCutWithDependencies(
	ctx context.Context,
	service CutRunner,
	publisher Publisher,
	inputPath string,
	startTime string,
	endTime string,
	outDir string,
	output io.Writer,
) error {
	start, err := media.ParseTimecode(startTime)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	end, err := media.ParseTimecode(endTime)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("source file does not exist: %s", inputPath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file: %s", inputPath)
	}

	fmt.Fprintf(output, "Cutting %s from %s to %s...\n", filepath.Base(inputPath), start, end)

	result, err := service.Cut(ctx, &media.CutRequest{
		Source:              f,
		OriginalFileName:    filepath.Base(inputPath),
		DeclaredContentType: media.ContentTypeFor(inputPath),
		SizeBytes:           info.Size(),
		StartSeconds:        start.Seconds(),
		EndSeconds:          end.Seconds(),
	})
	if err != nil {
		if result != nil && result.Message != "" {
			return fmt.Errorf("%s: %w", result.Message, err)
		}
		return err
	}

	if publisher != nil {
		// The local cut is only a staging copy once published
		defer os.Remove(result.OutputPath)

		uploaded, err := publisher.Publish(ctx, distribution.PublishRequest{
			LocalPath:  result.OutputPath,
			FileName:   result.OutputFileName,
			SourceName: filepath.Base(inputPath),
			Range:      media.TimeRange{Start: start, Duration: end - start},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(output, "Published %s (%.1f MB)\n", uploaded.FileName, float64(uploaded.Size)/1024/1024)
		fmt.Fprintf(output, "Link: %s\n", uploaded.ShareableURL)
		return nil
	}

	dest, err := moveFile(result.OutputPath, outDir, result.OutputFileName)
	if err != nil {
		os.Remove(result.OutputPath)
		return err
	}

	fmt.Fprintf(output, "Successfully created: %s\n", dest)
	return nil
}

// moveFile moves src into dir under name, copying when a rename crosses filesystems
func moveFile(src, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	dest := filepath.Join(dir, name)

	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("output file already exists: %s", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to check output file: %w", err)
	}

	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open cut: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to copy cut: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	os.Remove(src)
	return dest, nil
}
