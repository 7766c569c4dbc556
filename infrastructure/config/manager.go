package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors for config management
var (
	ErrTypeNotFound  = errors.New("allowed type not found")
	ErrDuplicateType = errors.New("allowed type already exists")
	ErrInvalidType   = errors.New("invalid allowed type")
	ErrLastType      = errors.New("cannot remove the last allowed type")
)

var (
	mimeTypePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9.+-]*/[a-z0-9][a-z0-9.+-]*$`)
	extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// ConfigManager provides CRUD operations for config entries
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Config returns the managed configuration
func (m *ConfigManager) Config() *Config {
	return m.config
}

// NormalizeAllowedType lowercases and validates an allow-list entry.
// Entries are MIME types ("video/mp4") or extensions (".mp4").
func NormalizeAllowedType(entry string) (string, error) {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if mimeTypePattern.MatchString(entry) || extensionPattern.MatchString(entry) {
		return entry, nil
	}
	return "", fmt.Errorf("%w: %q (expected type/subtype or .ext)", ErrInvalidType, entry)
}

// --- Allowed type CRUD ---

// AddAllowedType adds a MIME type or extension to the allow-list
func (m *ConfigManager) AddAllowedType(entry string) error {
	entry, err := NormalizeAllowedType(entry)
	if err != nil {
		return err
	}

	if m.indexOf(entry) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateType, entry)
	}

	m.config.Cutter.AllowedTypes = append(m.config.Cutter.AllowedTypes, entry)
	return Save(m.config, m.configPath)
}

// ListAllowedTypes returns the allow-list in configured order
func (m *ConfigManager) ListAllowedTypes() []string {
	result := make([]string, len(m.config.Cutter.AllowedTypes))
	copy(result, m.config.Cutter.AllowedTypes)
	return result
}

// RemoveAllowedType removes an entry (case-insensitive)
func (m *ConfigManager) RemoveAllowedType(entry string) error {
	entry = strings.ToLower(strings.TrimSpace(entry))
	i := m.indexOf(entry)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrTypeNotFound, entry)
	}
	if len(m.config.Cutter.AllowedTypes) == 1 {
		return fmt.Errorf("%w: %q", ErrLastType, entry)
	}

	types := m.config.Cutter.AllowedTypes
	m.config.Cutter.AllowedTypes = append(types[:i:i], types[i+1:]...)
	return Save(m.config, m.configPath)
}

func (m *ConfigManager) indexOf(entry string) int {
	for i, t := range m.config.Cutter.AllowedTypes {
		if strings.EqualFold(t, entry) {
			return i
		}
	}
	return -1
}
