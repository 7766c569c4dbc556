package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values
const EnvPrefix = "STREAMCUTTER_"

// maxMB is the largest size in MB whose byte count (plus one) fits in an int64
const maxMB = math.MaxInt64>>20 - 1

// DefaultPath is where the config file is looked up when no path is given
const DefaultPath = "config/config.yaml"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cutter  CutterConfig  `yaml:"cutter"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Logging LoggingConfig `yaml:"logging"`
	Drive   DriveConfig   `yaml:"drive"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	MaxBodyMB   int64  `yaml:"max_body_mb"`
}

// CutterConfig contains settings for the external cutter and its uploads
type CutterConfig struct {
	BinaryPath    string        `yaml:"binary_path"`
	TempDir       string        `yaml:"temp_dir"`
	MaxFileSizeMB int64         `yaml:"max_file_size_mb"`
	Timeout       time.Duration `yaml:"timeout"`
	AllowedTypes  []string      `yaml:"allowed_types"`
}

// CleanupConfig contains janitor settings
type CleanupConfig struct {
	Interval     time.Duration `yaml:"interval"`
	RetentionAge time.Duration `yaml:"retention_age"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DriveConfig contains Google Drive publishing settings
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	FolderID        string `yaml:"folder_id"`
}

// DefaultAllowedTypes is the allow-list used when none is configured
var DefaultAllowedTypes = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-msvideo",
	"audio/mpeg",
	"audio/wav",
	"audio/ogg",
	".mp3",
	".mov",
	".avi",
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":8080",
			MetricsAddr: ":9090",
			MaxBodyMB:   110,
		},
		Cutter: CutterConfig{
			BinaryPath:    "ffmpeg",
			TempDir:       "temp",
			MaxFileSizeMB: 100,
			Timeout:       10 * time.Minute,
			AllowedTypes:  append([]string(nil), DefaultAllowedTypes...),
		},
		Cleanup: CleanupConfig{
			Interval:     30 * time.Minute,
			RetentionAge: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Drive: DriveConfig{
			CredentialsFile: "credentials.json",
		},
	}
}

// Load reads and parses the configuration from the specified YAML file.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads environment variables from the given .env files if they exist
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with STREAMCUTTER_* environment variables
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int64) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("FFMPEG_PATH", &cfg.Cutter.BinaryPath)
	str("TEMP_DIR", &cfg.Cutter.TempDir)
	str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("METRICS_ADDR", &cfg.Server.MetricsAddr)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("DRIVE_FOLDER_ID", &cfg.Drive.FolderID)
	str("DRIVE_CREDENTIALS_FILE", &cfg.Drive.CredentialsFile)

	if err := num("MAX_FILE_SIZE_MB", &cfg.Cutter.MaxFileSizeMB); err != nil {
		return err
	}
	if err := dur("TIMEOUT", &cfg.Cutter.Timeout); err != nil {
		return err
	}
	if err := dur("CLEANUP_INTERVAL", &cfg.Cleanup.Interval); err != nil {
		return err
	}
	return dur("RETENTION_AGE", &cfg.Cleanup.RetentionAge)
}

// Validate checks that the configuration can run the service
func (c *Config) Validate() error {
	var errs []error
	if c.Cutter.BinaryPath == "" {
		errs = append(errs, errors.New("cutter.binary_path is required"))
	}
	if c.Cutter.TempDir == "" {
		errs = append(errs, errors.New("cutter.temp_dir is required"))
	}
	if c.Cutter.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("cutter.max_file_size_mb must be positive"))
	} else if c.Cutter.MaxFileSizeMB > maxMB {
		errs = append(errs, fmt.Errorf("cutter.max_file_size_mb must not exceed %d", maxMB))
	}
	if c.Cutter.Timeout <= 0 {
		errs = append(errs, errors.New("cutter.timeout must be positive"))
	}
	if len(c.Cutter.AllowedTypes) == 0 {
		errs = append(errs, errors.New("cutter.allowed_types must not be empty"))
	}
	if c.Cleanup.Interval <= 0 {
		errs = append(errs, errors.New("cleanup.interval must be positive"))
	}
	if c.Cleanup.RetentionAge <= 0 {
		errs = append(errs, errors.New("cleanup.retention_age must be positive"))
	}
	if c.Server.MaxBodyMB < 0 {
		errs = append(errs, errors.New("server.max_body_mb must not be negative"))
	} else if c.Server.MaxBodyMB > maxMB {
		errs = append(errs, fmt.Errorf("server.max_body_mb must not exceed %d", maxMB))
	}
	return errors.Join(errs...)
}

// Warnings reports settings that are valid but risky
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Cutter.Timeout >= c.Cleanup.RetentionAge {
		warnings = append(warnings, fmt.Sprintf(
			"cutter.timeout (%s) is not shorter than cleanup.retention_age (%s); the janitor may reclaim files of a slow in-flight cut",
			c.Cutter.Timeout, c.Cleanup.RetentionAge))
	}
	if c.Server.MaxBodyMB > 0 && c.Server.MaxBodyMB < c.Cutter.MaxFileSizeMB {
		warnings = append(warnings, fmt.Sprintf(
			"server.max_body_mb (%d) is smaller than cutter.max_file_size_mb (%d); large uploads are rejected before validation",
			c.Server.MaxBodyMB, c.Cutter.MaxFileSizeMB))
	}
	return warnings
}

// MaxFileSizeBytes returns the upload size limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Cutter.MaxFileSizeMB * 1024 * 1024
}

// MaxBodyBytes returns the HTTP request body limit in bytes (0 means unlimited)
func (c *Config) MaxBodyBytes() int64 {
	return c.Server.MaxBodyMB * 1024 * 1024
}
