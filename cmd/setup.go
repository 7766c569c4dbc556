package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"stream-cutter/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up the ffmpeg location, temp file
handling, the HTTP listener, and optional Google Drive publishing.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath
	}
	return RunSetupWithPrompter(DefaultPrompter, path)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	fmt.Println("Welcome to stream-cutter setup!")
	fmt.Println()

	cfg := config.Default()

	if err := promptCutter(prompter, cfg); err != nil {
		return err
	}

	if err := promptCleanup(prompter, cfg); err != nil {
		return err
	}

	if err := promptServer(prompter, cfg); err != nil {
		return err
	}

	if err := promptDrive(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range cfg.Warnings() {
		fmt.Printf("Warning: %s\n", w)
	}

	// Save configuration
	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", configPath)
	return nil
}

func promptCutter(prompter Prompter, cfg *config.Config) error {
	binary, err := prompter.Input("Path to the ffmpeg executable?", cfg.Cutter.BinaryPath)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if binary != "" {
		cfg.Cutter.BinaryPath = binary
	}

	tempDir, err := prompter.Input("Directory for temporary uploads and cuts?", cfg.Cutter.TempDir)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if tempDir != "" {
		cfg.Cutter.TempDir = tempDir
	}

	maxSize, err := prompter.Input("Maximum upload size in MB?", strconv.FormatInt(cfg.Cutter.MaxFileSizeMB, 10))
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if maxSize != "" {
		n, err := strconv.ParseInt(maxSize, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("maximum upload size must be a positive number of MB")
		}
		cfg.Cutter.MaxFileSizeMB = n
	}

	return promptDuration(prompter, "Maximum time for a single cut?", &cfg.Cutter.Timeout)
}

func promptCleanup(prompter Prompter, cfg *config.Config) error {
	if err := promptDuration(prompter, "How often should stale temp files be reclaimed?", &cfg.Cleanup.Interval); err != nil {
		return err
	}
	return promptDuration(prompter, "How old must a temp file be before it is reclaimed?", &cfg.Cleanup.RetentionAge)
}

func promptServer(prompter Prompter, cfg *config.Config) error {
	listen, err := prompter.Input("HTTP listen address?", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if listen != "" {
		cfg.Server.ListenAddr = listen
	}
	return nil
}

func promptDrive(prompter Prompter, cfg *config.Config) error {
	enable, err := prompter.Confirm("Publish cuts to Google Drive?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !enable {
		return nil
	}

	credentials, err := prompter.Input("Path to Google service account credentials file?", cfg.Drive.CredentialsFile)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials != "" {
		cfg.Drive.CredentialsFile = credentials
	}

	folder, err := prompter.Input("Google Drive folder ID for published cuts?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if folder == "" {
		return fmt.Errorf("folder ID is required")
	}
	cfg.Drive.FolderID = folder

	return nil
}

func promptDuration(prompter Prompter, message string, dst *time.Duration) error {
	value, err := prompter.Input(message, dst.String())
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("%q is not a positive duration (examples: 90s, 10m, 1h)", value)
	}
	*dst = d
	return nil
}
