// Package screenshot captures menu screenshots for catalog titles that
// do not have one yet. Each title gets its own short emulator session
// writing into the screenshots directory; individual failures are
// counted rather than aborting the batch.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/onaryc/AmigaVision/internal/emulator"
	"github.com/onaryc/AmigaVision/internal/repository"
)

// Capturer drives per-title screenshot sessions.
type Capturer struct {
	repo     repository.Repository
	launcher *emulator.Launcher
	cfg      emulator.Config
	outDir   string
	log      *zap.Logger
}

// New creates a Capturer writing .png files into outDir. The emulator
// config acts as a template; hard drives and the screenshot directory
// are filled in per session.
func New(repo repository.Repository, launcher *emulator.Launcher, cfg emulator.Config, outDir string, log *zap.Logger) *Capturer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Capturer{repo: repo, launcher: launcher, cfg: cfg, outDir: outDir, log: log}
}

// Path returns the screenshot location for a title id.
func (c *Capturer) Path(id string) string {
	return filepath.Join(c.outDir, id+".png")
}

// Run captures screenshots for every title that has an archive but no
// screenshot yet. It returns the number captured and the number of
// failed sessions; only setup errors and context cancellation abort the
// batch.
func (c *Capturer) Run(ctx context.Context) (captured, failed int, err error) {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return 0, 0, err
	}
	entries, err := c.repo.All(ctx)
	if err != nil {
		return 0, 0, err
	}

	tmpDir, err := os.MkdirTemp("", "ags-shots-")
	if err != nil {
		return 0, 0, err
	}
	defer os.RemoveAll(tmpDir)

	for i := range entries {
		e := &entries[i]
		if e.ArchivePath == "" {
			continue
		}
		if _, err := os.Stat(c.Path(e.ID)); err == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return captured, failed, err
		}

		if err := c.capture(ctx, e.ID, tmpDir); err != nil {
			c.log.Warn("screenshot failed", zap.String("id", e.ID), zap.Error(err))
			failed++
			continue
		}
		captured++
	}

	c.log.Info("screenshot run complete",
		zap.Int("captured", captured), zap.Int("failed", failed))
	return captured, failed, nil
}

func (c *Capturer) capture(ctx context.Context, id, tmpDir string) error {
	cfg := c.cfg
	cfg.ScreenshotsDir = c.outDir
	cfg.ScreenshotsPrefix = id

	configPath := filepath.Join(tmpDir, id+".fsuae")
	if err := emulator.WriteConfig(configPath, cfg); err != nil {
		return err
	}
	if err := c.launcher.Run(ctx, configPath); err != nil {
		return err
	}

	// the emulator numbers its captures as <prefix>-NNN.png; keep the
	// first one under the id. The separator is part of the pattern so a
	// title whose id prefixes another (…2mb, …aga variants) never claims
	// that title's captures.
	if _, err := os.Stat(c.Path(id)); err == nil {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(c.outDir, id+"-*.png"))
	if err != nil || len(matches) == 0 {
		return fmt.Errorf("emulator produced no screenshot for %s", id)
	}
	if err := os.Rename(matches[0], c.Path(id)); err != nil {
		return err
	}
	for _, extra := range matches[1:] {
		os.Remove(extra)
	}
	return nil
}
