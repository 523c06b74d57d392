// Package emulator generates FS-UAE configuration files and launches the
// emulator against built images or staging trees.
package emulator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Config describes one FS-UAE session.
type Config struct {
	Model             string
	Kickstart         string
	Fullscreen        bool
	HardDrives        []string // image files or host directories, in slot order
	ScreenshotsDir    string
	ScreenshotsPrefix string
}

// WriteConfig renders cfg as a .fsuae file at path.
func WriteConfig(path string, cfg Config) error {
	var b strings.Builder
	b.WriteString("[fs-uae]\n")
	fmt.Fprintf(&b, "amiga_model = %s\n", cfg.Model)
	if cfg.Kickstart != "" {
		fmt.Fprintf(&b, "kickstart_file = %s\n", cfg.Kickstart)
	}
	if cfg.Fullscreen {
		b.WriteString("fullscreen = 1\n")
	}
	for i, hd := range cfg.HardDrives {
		fmt.Fprintf(&b, "hard_drive_%d = %s\n", i, hd)
	}
	if cfg.ScreenshotsDir != "" {
		fmt.Fprintf(&b, "screenshots_output_dir = %s\n", cfg.ScreenshotsDir)
	}
	if cfg.ScreenshotsPrefix != "" {
		fmt.Fprintf(&b, "screenshots_output_prefix = %s\n", cfg.ScreenshotsPrefix)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Launcher runs the FS-UAE binary.
type Launcher struct {
	bin string
	log *zap.Logger
}

// New creates a Launcher for the given binary. A nil logger disables
// logging.
func New(bin string, log *zap.Logger) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{bin: bin, log: log}
}

// Run launches the emulator with a config file and waits for it to exit.
// Cancelling the context kills the emulator process.
func (l *Launcher) Run(ctx context.Context, configPath string) error {
	l.log.Info("launching emulator",
		zap.String("bin", l.bin), zap.String("config", configPath))

	cmd := exec.CommandContext(ctx, l.bin, configPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("emulator interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("emulator failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	l.log.Info("emulator exited cleanly")
	return nil
}
