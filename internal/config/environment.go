package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables the pipeline requires. They normally come from a
// .env file in the working directory; values already present in the process
// environment win.
const (
	EnvContent = "AGSCONTENT"
	EnvDest    = "AGSDEST"
	EnvTemp    = "AGSTEMP"
	EnvFSUAE   = "FSUAEBIN"
)

// Paths holds the resolved pipeline directories and binaries.
type Paths struct {
	Content string // content collection root (contains titles/)
	Dest    string // where finished images are relocated
	Temp    string // staging area for image builds
	FSUAE   string // FS-UAE emulator binary
}

// LoadPaths reads envFile (ignored when missing, so a fully exported
// environment also works) and resolves the pipeline paths.
func LoadPaths(envFile string) (*Paths, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	p := &Paths{
		Content: os.Getenv(EnvContent),
		Dest:    os.Getenv(EnvDest),
		Temp:    os.Getenv(EnvTemp),
		FSUAE:   os.Getenv(EnvFSUAE),
	}
	return p, nil
}

// Verify checks that every required variable is set and that the directory
// paths exist. The emulator binary is only required when launch is true, so
// dry builds work on machines without FS-UAE.
func (p *Paths) Verify(launch bool) error {
	checks := []struct {
		name, value string
	}{
		{EnvContent, p.Content},
		{EnvDest, p.Dest},
		{EnvTemp, p.Temp},
	}
	for _, c := range checks {
		if c.value == "" {
			return fmt.Errorf("%s is not set", c.name)
		}
		info, err := os.Stat(c.value)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: %s is not a directory", c.name, c.value)
		}
	}

	if launch {
		if p.FSUAE == "" {
			return fmt.Errorf("%s is not set", EnvFSUAE)
		}
		if _, err := os.Stat(p.FSUAE); err != nil {
			return fmt.Errorf("%s: %w", EnvFSUAE, err)
		}
	}
	return nil
}

// Titles returns the content tree's titles directory.
func (p *Paths) Titles() string {
	return filepath.Join(p.Content, "titles")
}

// DataDir returns the content tree's metadata directory.
func (p *Paths) DataDir() string {
	return filepath.Join(p.Content, "data")
}

// ImageDir returns the directory holding per-title menu images.
func (p *Paths) ImageDir() string {
	return filepath.Join(p.DataDir(), "img")
}

// CSVPath returns the canonical titles CSV.
func (p *Paths) CSVPath() string {
	return filepath.Join(p.DataDir(), "csv", "titles.csv")
}

// DBPath returns the SQLite catalog location.
func (p *Paths) DBPath() string {
	return filepath.Join(p.DataDir(), "titles.sqlite3")
}

// ScreenshotDir returns the capture output directory.
func (p *Paths) ScreenshotDir() string {
	return filepath.Join(p.Content, "screenshots")
}
