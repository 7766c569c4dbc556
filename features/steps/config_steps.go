//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stream-cutter/cmd"
	"stream-cutter/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	output     *bytes.Buffer
	err        error
}

// SharedConfigContext is reset after each scenario via After hook
var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.cfg = nil
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	// Reset context after each scenario
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedConfigContext = &configContext{}
		return c, nil
	})

	ctx.Step(`^a config file containing:$`, testCtx.aConfigFileContaining)
	ctx.Step(`^no config file exists$`, testCtx.noConfigFileExists)
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^I attempt to load the configuration$`, testCtx.iAttemptToLoadTheConfiguration)
	ctx.Step(`^the temp directory should be "([^"]*)"$`, testCtx.theTempDirectoryShouldBe)
	ctx.Step(`^the cut timeout should be "([^"]*)"$`, testCtx.theCutTimeoutShouldBe)
	ctx.Step(`^the retention age should be "([^"]*)"$`, testCtx.theRetentionAgeShouldBe)
	ctx.Step(`^I should receive a configuration error mentioning "([^"]*)"$`, testCtx.iShouldReceiveAConfigurationErrorMentioning)
	ctx.Step(`^I run config add type "([^"]*)"$`, testCtx.iRunConfigAddType)
	ctx.Step(`^I run config remove type "([^"]*)"$`, testCtx.iRunConfigRemoveType)
	ctx.Step(`^I run config list types$`, testCtx.iRunConfigListTypes)
	ctx.Step(`^the saved allow-list should contain "([^"]*)"$`, testCtx.theSavedAllowListShouldContain)
	ctx.Step(`^the saved allow-list should not contain "([^"]*)"$`, testCtx.theSavedAllowListShouldNotContain)
	ctx.Step(`^the config command should fail with "([^"]*)"$`, testCtx.theConfigCommandShouldFailWith)
	ctx.Step(`^the config output should contain "([^"]*)"$`, testCtx.theConfigOutputShouldContain)
}

func (c *configContext) aConfigFileContaining(content *godog.DocString) error {
	return os.WriteFile(c.configPath, []byte(content.Content), 0o644)
}

func (c *configContext) noConfigFileExists() error {
	return nil
}

func (c *configContext) load() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *configContext) iLoadTheConfiguration() error {
	cfg, err := c.load()
	if err != nil {
		return fmt.Errorf("unexpected error loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *configContext) iAttemptToLoadTheConfiguration() error {
	c.cfg, c.err = c.load()
	return nil
}

func (c *configContext) theTempDirectoryShouldBe(expected string) error {
	if c.cfg.Cutter.TempDir != expected {
		return fmt.Errorf("expected temp_dir %q, got %q", expected, c.cfg.Cutter.TempDir)
	}
	return nil
}

func (c *configContext) theCutTimeoutShouldBe(expected string) error {
	d, err := time.ParseDuration(expected)
	if err != nil {
		return err
	}
	if c.cfg.Cutter.Timeout != d {
		return fmt.Errorf("expected timeout %s, got %s", d, c.cfg.Cutter.Timeout)
	}
	return nil
}

func (c *configContext) theRetentionAgeShouldBe(expected string) error {
	d, err := time.ParseDuration(expected)
	if err != nil {
		return err
	}
	if c.cfg.Cleanup.RetentionAge != d {
		return fmt.Errorf("expected retention_age %s, got %s", d, c.cfg.Cleanup.RetentionAge)
	}
	return nil
}

func (c *configContext) iShouldReceiveAConfigurationErrorMentioning(text string) error {
	if c.err == nil {
		return fmt.Errorf("expected a configuration error, got none")
	}
	if !strings.Contains(c.err.Error(), text) {
		return fmt.Errorf("expected error mentioning %q, got: %v", text, c.err)
	}
	return nil
}

func (c *configContext) iRunConfigAddType(entry string) error {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return err
	}
	c.err = cmd.RunConfigAddWithDependencies(cfg, c.configPath, "type", entry, c.output)
	return nil
}

func (c *configContext) iRunConfigRemoveType(entry string) error {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return err
	}
	c.err = cmd.RunConfigRemoveWithDependencies(cfg, c.configPath, "type", entry, c.output)
	return nil
}

func (c *configContext) iRunConfigListTypes() error {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return err
	}
	c.err = cmd.RunConfigListWithDependencies(cfg, c.configPath, "types", c.output)
	return c.err
}

func (c *configContext) savedTypes() ([]string, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	return cfg.Cutter.AllowedTypes, nil
}

func (c *configContext) theSavedAllowListShouldContain(entry string) error {
	if c.err != nil {
		return fmt.Errorf("config command failed: %w", c.err)
	}
	types, err := c.savedTypes()
	if err != nil {
		return err
	}
	for _, t := range types {
		if t == entry {
			return nil
		}
	}
	return fmt.Errorf("%q not found in %v", entry, types)
}

func (c *configContext) theSavedAllowListShouldNotContain(entry string) error {
	if c.err != nil {
		return fmt.Errorf("config command failed: %w", c.err)
	}
	types, err := c.savedTypes()
	if err != nil {
		return err
	}
	for _, t := range types {
		if t == entry {
			return fmt.Errorf("%q should have been removed from %v", entry, types)
		}
	}
	return nil
}

func (c *configContext) theConfigCommandShouldFailWith(text string) error {
	if c.err == nil {
		return fmt.Errorf("expected config command to fail")
	}
	if !strings.Contains(c.err.Error(), text) {
		return fmt.Errorf("expected error containing %q, got: %v", text, c.err)
	}
	return nil
}

func (c *configContext) theConfigOutputShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}
