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

	"stream-cutter/application/cut"
	"stream-cutter/cmd"
	"stream-cutter/domain/distribution"
	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/filesystem"
	"stream-cutter/infrastructure/tempdir"

	"github.com/cucumber/godog"
)

// fakeCutter writes a canned output instead of invoking ffmpeg
type fakeCutter struct {
	jobs     []media.CutJob
	exitCode int
	timedOut bool
	stderr   []string
	noOutput bool
}

func (f *fakeCutter) Cut(ctx context.Context, job media.CutJob) (*media.ProcessOutcome, error) {
	f.jobs = append(f.jobs, job)
	if !f.noOutput && f.exitCode == 0 && !f.timedOut {
		if err := os.WriteFile(job.OutputPath, []byte("cut-bytes"), 0o600); err != nil {
			return nil, err
		}
	}
	return &media.ProcessOutcome{ExitCode: f.exitCode, TimedOut: f.timedOut, StderrLines: f.stderr}, nil
}

// fakePublisher records published files
type fakePublisher struct {
	published []distribution.PublishRequest
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, req distribution.PublishRequest) (*distribution.UploadResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return nil, err
	}
	p.published = append(p.published, req)
	return &distribution.UploadResult{
		FileID:       "file-1",
		FileName:     req.FileName,
		Size:         info.Size(),
		ShareableURL: "https://drive.google.com/file/d/file-1/view",
	}, nil
}

type cutContext struct {
	workDir   string
	tempDir   string
	outDir    string
	inputPath string
	maxBytes  int64
	cutter    *fakeCutter
	publisher *fakePublisher
	output    *bytes.Buffer
	err       error
}

var SharedCutContext = &cutContext{}

func InitializeCutScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedCutContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		workDir, err := os.MkdirTemp("", "cut-test-*")
		if err != nil {
			return c, err
		}
		testCtx.workDir = workDir
		testCtx.tempDir = filepath.Join(workDir, "tmp")
		testCtx.outDir = filepath.Join(workDir, "out")
		testCtx.maxBytes = 1024 * 1024
		testCtx.cutter = &fakeCutter{}
		testCtx.publisher = nil
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.workDir != "" {
			os.RemoveAll(testCtx.workDir)
		}
		SharedCutContext = &cutContext{}
		return c, nil
	})

	ctx.Step(`^a source file "([^"]*)" of (\d+) bytes$`, testCtx.aSourceFileOfBytes)
	ctx.Step(`^the upload limit is (\d+) bytes$`, testCtx.theUploadLimitIsBytes)
	ctx.Step(`^the cutter exits with status (\d+) and message "([^"]*)"$`, testCtx.theCutterExitsWithStatus)
	ctx.Step(`^the cutter times out$`, testCtx.theCutterTimesOut)
	ctx.Step(`^the cutter produces no output$`, testCtx.theCutterProducesNoOutput)
	ctx.Step(`^publishing to Drive is enabled$`, testCtx.publishingIsEnabled)
	ctx.Step(`^I cut from "([^"]*)" to "([^"]*)"$`, testCtx.iCutFromTo)
	ctx.Step(`^the cut should succeed$`, testCtx.theCutShouldSucceed)
	ctx.Step(`^the cut should fail with "([^"]*)"$`, testCtx.theCutShouldFailWith)
	ctx.Step(`^the cutter should not have been invoked$`, testCtx.theCutterShouldNotHaveBeenInvoked)
	ctx.Step(`^the cutter should have been asked for start "([^"]*)" and duration "([^"]*)"$`, testCtx.theCutterShouldHaveBeenAskedFor)
	ctx.Step(`^the output directory should contain "([^"]*)"$`, testCtx.theOutputDirectoryShouldContain)
	ctx.Step(`^"([^"]*)" should have been published$`, testCtx.shouldHaveBeenPublished)
	ctx.Step(`^the published description should be "([^"]*)"$`, testCtx.thePublishedDescriptionShouldBe)
	ctx.Step(`^the temp directory should be empty$`, testCtx.theTempDirectoryShouldBeEmpty)
	ctx.Step(`^the cut output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
}

func (c *cutContext) aSourceFileOfBytes(name string, size int) error {
	c.inputPath = filepath.Join(c.workDir, name)
	return os.WriteFile(c.inputPath, bytes.Repeat([]byte{'x'}, size), 0o644)
}

func (c *cutContext) theUploadLimitIsBytes(limit int) error {
	c.maxBytes = int64(limit)
	return nil
}

func (c *cutContext) theCutterExitsWithStatus(code int, message string) error {
	c.cutter.exitCode = code
	c.cutter.stderr = []string{message}
	return nil
}

func (c *cutContext) theCutterTimesOut() error {
	c.cutter.timedOut = true
	c.cutter.exitCode = -1
	return nil
}

func (c *cutContext) theCutterProducesNoOutput() error {
	c.cutter.noOutput = true
	return nil
}

func (c *cutContext) publishingIsEnabled() error {
	c.publisher = &fakePublisher{}
	return nil
}

func (c *cutContext) iCutFromTo(start, end string) error {
	clock := func() time.Time { return time.Date(2026, 10, 16, 14, 30, 0, 0, time.Local) }
	ns, err := tempdir.New(c.tempDir, tempdir.WithClock(clock))
	if err != nil {
		return err
	}
	service := cut.NewService(ns, c.cutter, filesystem.NewChecker(), cut.Settings{
		AllowedTypes:     []string{"video/mp4", "audio/mpeg", ".mov"},
		MaxFileSizeBytes: c.maxBytes,
	}, cut.WithClock(clock))

	// Avoid the typed-nil interface trap when publishing is disabled
	var publisher cmd.Publisher
	if c.publisher != nil {
		publisher = c.publisher
	}

	c.err = cmd.RunCutWithDependencies(context.Background(), service, publisher, c.inputPath, start, end, c.outDir, c.output)
	return nil
}

func (c *cutContext) theCutShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got: %v", c.err)
	}
	return nil
}

func (c *cutContext) theCutShouldFailWith(message string) error {
	if c.err == nil {
		return fmt.Errorf("expected failure containing %q, got success", message)
	}
	if !strings.Contains(c.err.Error(), message) {
		return fmt.Errorf("expected error containing %q, got: %v", message, c.err)
	}
	return nil
}

func (c *cutContext) theCutterShouldNotHaveBeenInvoked() error {
	if len(c.cutter.jobs) != 0 {
		return fmt.Errorf("expected no cutter invocations, got %d", len(c.cutter.jobs))
	}
	return nil
}

func (c *cutContext) theCutterShouldHaveBeenAskedFor(start, duration string) error {
	if len(c.cutter.jobs) != 1 {
		return fmt.Errorf("expected 1 cutter invocation, got %d", len(c.cutter.jobs))
	}
	job := c.cutter.jobs[0]
	if job.Range.Start.String() != start {
		return fmt.Errorf("expected start %s, got %s", start, job.Range.Start)
	}
	if job.Range.Duration.String() != duration {
		return fmt.Errorf("expected duration %s, got %s", duration, job.Range.Duration)
	}
	return nil
}

func (c *cutContext) theOutputDirectoryShouldContain(name string) error {
	if _, err := os.Stat(filepath.Join(c.outDir, name)); err != nil {
		return fmt.Errorf("expected %s in output directory: %w", name, err)
	}
	return nil
}

func (c *cutContext) shouldHaveBeenPublished(name string) error {
	if c.publisher == nil {
		return fmt.Errorf("publishing was not enabled")
	}
	for _, p := range c.publisher.published {
		if p.FileName == name {
			return nil
		}
	}
	return fmt.Errorf("%s not published; got %v", name, c.publisher.published)
}

func (c *cutContext) thePublishedDescriptionShouldBe(expected string) error {
	if c.publisher == nil || len(c.publisher.published) != 1 {
		return fmt.Errorf("expected exactly one published cut")
	}
	if got := c.publisher.published[0].Description(); got != expected {
		return fmt.Errorf("expected description %q, got %q", expected, got)
	}
	return nil
}

func (c *cutContext) theTempDirectoryShouldBeEmpty() error {
	entries, err := os.ReadDir(c.tempDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return fmt.Errorf("expected empty temp directory, found %v", names)
	}
	return nil
}

func (c *cutContext) theOutputShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}
