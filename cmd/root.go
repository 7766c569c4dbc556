package cmd

import (
	"fmt"
	"os"

	"stream-cutter/infrastructure/config"
	"stream-cutter/infrastructure/logging"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	cfgErr   error
)

var rootCmd = &cobra.Command{
	Use:   "stream-cutter",
	Short: "Cut time ranges out of media files without re-encoding",
	Long: `stream-cutter extracts a time range from an audio or video file using
ffmpeg stream copy, and manages the temporary files that cutting leaves behind:

  - Serve an HTTP API that accepts uploads and returns the cut
  - Cut a local file from the command line
  - Publish cuts to Google Drive with a shareable link
  - Reclaim stale temporary files on a schedule or on demand

Example:
  stream-cutter cut --input recording.mp4 --start 00:05:30 --end 00:06:15.500`,
	SilenceUsage: true,
}

func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	// .env is optional; real environment variables win over it
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, cfgErr = config.LoadOrDefault(cfgFile)
	if cfgErr != nil {
		// Commands that need config will check and error appropriately
		cfg = nil
		return
	}

	if cfgErr = config.ApplyEnv(cfg); cfgErr != nil {
		cfg = nil
		return
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	if logLevel != "" {
		logging.SetLevel(logLevel)
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// requireConfig returns the loaded configuration or the reason it is unavailable
func requireConfig() (*config.Config, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("configuration not loaded: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration not loaded; run 'stream-cutter setup' first")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", cfgFile, err)
	}
	return cfg, nil
}
