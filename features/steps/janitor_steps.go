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

	"stream-cutter/application/janitor"
	"stream-cutter/cmd"
	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/tempdir"

	"github.com/cucumber/godog"
)

type janitorContext struct {
	tempDir   string
	now       time.Time
	namespace *tempdir.Namespace
	held      *media.TempFile
	output    *bytes.Buffer
	err       error
}

var SharedJanitorContext = &janitorContext{}

func InitializeJanitorScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedJanitorContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "janitor-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = dir
		testCtx.now = time.Now()
		testCtx.namespace, err = tempdir.New(dir, tempdir.WithClock(func() time.Time { return testCtx.now }))
		if err != nil {
			return c, err
		}
		testCtx.held = nil
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedJanitorContext = &janitorContext{}
		return c, nil
	})

	ctx.Step(`^a temp file "([^"]*)" that is (\d+) minutes old$`, testCtx.aTempFileThatIsMinutesOld)
	ctx.Step(`^an in-flight upload that is (\d+) minutes old$`, testCtx.anInFlightUploadThatIsMinutesOld)
	ctx.Step(`^the in-flight upload finishes$`, testCtx.theInFlightUploadFinishes)
	ctx.Step(`^I run cleanup with a retention of (\d+) minutes$`, testCtx.iRunCleanupWithRetention)
	ctx.Step(`^"([^"]*)" should have been reclaimed$`, testCtx.shouldHaveBeenReclaimed)
	ctx.Step(`^"([^"]*)" should still exist$`, testCtx.shouldStillExist)
	ctx.Step(`^the in-flight upload should still exist$`, testCtx.theInFlightUploadShouldStillExist)
	ctx.Step(`^the in-flight upload should have been reclaimed$`, testCtx.theInFlightUploadShouldHaveBeenReclaimed)
	ctx.Step(`^the cleanup output should contain "([^"]*)"$`, testCtx.theCleanupOutputShouldContain)
}

func (j *janitorContext) age(path string, minutes int) error {
	mtime := j.now.Add(-time.Duration(minutes) * time.Minute)
	return os.Chtimes(path, mtime, mtime)
}

func (j *janitorContext) aTempFileThatIsMinutesOld(name string, minutes int) error {
	path := filepath.Join(j.tempDir, name)
	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		return err
	}
	return j.age(path, minutes)
}

func (j *janitorContext) anInFlightUploadThatIsMinutesOld(minutes int) error {
	tf, err := j.namespace.Reserve(media.PurposeInput, "upload.mp4")
	if err != nil {
		return err
	}
	w, err := j.namespace.Create(tf.Path)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("partial")); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	j.held = tf
	return j.age(tf.Path, minutes)
}

func (j *janitorContext) theInFlightUploadFinishes() error {
	if j.held == nil {
		return fmt.Errorf("no in-flight upload")
	}
	j.namespace.Release(j.held.Path)
	return nil
}

func (j *janitorContext) iRunCleanupWithRetention(minutes int) error {
	jan := janitor.New(j.namespace, time.Hour, time.Duration(minutes)*time.Minute)
	j.output.Reset()
	j.err = cmd.RunCleanupWithDependencies(context.Background(), jan, j.output)
	return j.err
}

func (j *janitorContext) shouldHaveBeenReclaimed(name string) error {
	if _, err := os.Stat(filepath.Join(j.tempDir, name)); !os.IsNotExist(err) {
		return fmt.Errorf("expected %s to be reclaimed", name)
	}
	return nil
}

func (j *janitorContext) shouldStillExist(name string) error {
	if _, err := os.Stat(filepath.Join(j.tempDir, name)); err != nil {
		return fmt.Errorf("expected %s to still exist: %w", name, err)
	}
	return nil
}

func (j *janitorContext) theInFlightUploadShouldStillExist() error {
	if _, err := os.Stat(j.held.Path); err != nil {
		return fmt.Errorf("expected in-flight upload to still exist: %w", err)
	}
	return nil
}

func (j *janitorContext) theInFlightUploadShouldHaveBeenReclaimed() error {
	if _, err := os.Stat(j.held.Path); !os.IsNotExist(err) {
		return fmt.Errorf("expected in-flight upload to be reclaimed")
	}
	return nil
}

func (j *janitorContext) theCleanupOutputShouldContain(text string) error {
	if !strings.Contains(j.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, j.output.String())
	}
	return nil
}
