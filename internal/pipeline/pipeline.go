// Package pipeline orders the build steps behind each command-line
// target. A target is a fixed sequence of steps over shared run state;
// steps run strictly in order, the first failure of a non-tolerant step
// aborts the target, and tolerant steps (cleanup) only log.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/onaryc/AmigaVision/internal/codec"
	"github.com/onaryc/AmigaVision/internal/config"
	"github.com/onaryc/AmigaVision/internal/emulator"
	"github.com/onaryc/AmigaVision/internal/imager"
	"github.com/onaryc/AmigaVision/internal/index"
	"github.com/onaryc/AmigaVision/internal/manifest"
	"github.com/onaryc/AmigaVision/internal/repository"
	"github.com/onaryc/AmigaVision/internal/screenshot"
)

// State is shared between the steps of one target run.
type State struct {
	Config *config.ImageConfig
	Image  *imager.Result
}

// Step is one unit of work inside a target.
type Step struct {
	Name     string
	Tolerant bool // failures are logged, not fatal
	Run      func(ctx context.Context, st *State) error
}

// Target is a named, ordered list of steps.
type Target struct {
	Name  string
	Steps []Step
}

// Options tune a Runner.
type Options struct {
	Verbose   bool
	ConfigDir string // image config directory, default "configs"
}

// Runner owns the target registry and the services the steps use.
type Runner struct {
	paths   *config.Paths
	repo    repository.Repository
	log     *zap.Logger
	opts    Options
	targets map[string]*Target
}

// New builds a Runner with the full target registry.
func New(paths *config.Paths, repo repository.Repository, log *zap.Logger, opts Options) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir = "configs"
	}
	r := &Runner{paths: paths, repo: repo, log: log, opts: opts}
	r.register()
	return r
}

func (r *Runner) register() {
	r.targets = make(map[string]*Target)
	add := func(name string, steps ...Step) {
		r.targets[name] = &Target{Name: name, Steps: steps}
	}

	add("index", Step{Name: "index", Run: r.stepIndex})
	add("manifests", Step{Name: "manifests", Run: r.stepManifests(false)})
	add("missing-manifests", Step{Name: "missing-manifests", Run: r.stepManifests(true)})
	add("verify-manifests", Step{Name: "verify-manifests", Run: r.stepVerifyManifests})
	add("sqlite", Step{Name: "sqlite", Run: r.stepImportCSV})
	add("csv", Step{Name: "csv", Run: r.stepExportCSV})
	add("screenshots", Step{Name: "screenshots", Run: r.stepScreenshots})

	add("image",
		r.stepBuild("MegaAGS.yaml", imager.Options{AllGames: true, AllDemoscene: true}),
		Step{Name: "launch", Run: r.stepLaunch},
		Step{Name: "relocate", Run: r.stepRelocate},
		Step{Name: "cleanup", Tolerant: true, Run: r.stepCleanup},
	)
	add("pocket-image",
		r.stepBuild("MegaAGS-Pocket.yaml", imager.Options{AllDemos: true, AutoLists: true}),
		Step{Name: "launch", Run: r.stepLaunch},
		Step{Name: "relocate", Run: r.stepRelocate},
		Step{Name: "cleanup", Tolerant: true, Run: r.stepCleanup},
	)
	add("mini-image",
		r.stepBuild("MegaAGS-Mini.yaml", imager.Options{AllDemos: true, AutoLists: true}),
		Step{Name: "launch", Run: r.stepLaunch},
		Step{Name: "relocate", Run: r.stepRelocate},
		Step{Name: "cleanup", Tolerant: true, Run: r.stepCleanup},
	)
	add("test-image",
		r.stepBuild("Test.yaml", imager.Options{AutoLists: true}),
		Step{Name: "launch", Run: r.stepLaunch},
		Step{Name: "cleanup", Tolerant: true, Run: r.stepCleanup},
	)
	// dry run: assemble the shelf tree and stop, nothing is launched and
	// the staging tree is kept for inspection
	add("test-dry",
		r.stepBuild("Test.yaml", imager.Options{AutoLists: true, OnlyAGSTree: true}),
	)
}

// Targets lists the registered target names.
func (r *Runner) Targets() []string {
	names := make([]string, 0, len(r.targets))
	for n := range r.targets {
		names = append(names, n)
	}
	return names
}

// Target returns a registered target.
func (r *Runner) Target(name string) (*Target, bool) {
	t, ok := r.targets[name]
	return t, ok
}

// Run executes a target by name.
func (r *Runner) Run(ctx context.Context, name string) error {
	t, ok := r.targets[name]
	if !ok {
		return fmt.Errorf("unknown target %q", name)
	}
	return r.RunTarget(ctx, t)
}

// RunTarget executes the steps of t in order. Non-tolerant failures
// abort; tolerant failures are logged and the run continues.
func (r *Runner) RunTarget(ctx context.Context, t *Target) error {
	st := &State{}
	for _, step := range t.Steps {
		r.log.Info("step", zap.String("target", t.Name), zap.String("name", step.Name))
		if err := step.Run(ctx, st); err != nil {
			if step.Tolerant {
				r.log.Warn("tolerant step failed",
					zap.String("target", t.Name), zap.String("name", step.Name), zap.Error(err))
				continue
			}
			return fmt.Errorf("%s/%s: %w", t.Name, step.Name, err)
		}
	}
	return nil
}

func (r *Runner) stepIndex(ctx context.Context, _ *State) error {
	ix := index.New(r.repo, r.log)
	_, err := ix.Run(ctx, r.paths.Titles(), r.paths.ImageDir(), r.opts.Verbose)
	return err
}

func (r *Runner) stepManifests(onlyMissing bool) func(context.Context, *State) error {
	return func(_ context.Context, _ *State) error {
		_, err := manifest.New(r.log).Build(r.paths.Titles(), onlyMissing)
		return err
	}
}

func (r *Runner) stepVerifyManifests(_ context.Context, _ *State) error {
	problems, err := manifest.New(r.log).Verify(r.paths.Titles())
	if err != nil {
		return err
	}
	if problems > 0 {
		return fmt.Errorf("%d manifest problems", problems)
	}
	return nil
}

// stepImportCSV rebuilds the SQLite catalog from the canonical CSV, but
// only when the DB is absent (or empty) or the CSV is newer; a catalog
// the indexer touched after the last CSV dump must not be thrown away.
func (r *Runner) stepImportCSV(ctx context.Context, _ *State) error {
	csvInfo, err := os.Stat(r.paths.CSVPath())
	if err != nil {
		return err
	}
	if dbInfo, err := os.Stat(r.paths.DBPath()); err == nil && !csvInfo.ModTime().After(dbInfo.ModTime()) {
		// opening the catalog creates the DB file, so a fresh mtime
		// alone does not prove there is anything in it
		entries, err := r.repo.All(ctx)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			r.log.Info("catalog up to date", zap.String("db", r.paths.DBPath()))
			return nil
		}
	}

	f, err := os.Open(r.paths.CSVPath())
	if err != nil {
		return err
	}
	defer f.Close()
	entries, err := (&codec.CSVCodec{}).Parse(f)
	if err != nil {
		return err
	}
	if err := r.repo.ReplaceAll(ctx, entries); err != nil {
		return err
	}
	r.log.Info("catalog rebuilt", zap.Int("entries", len(entries)))
	return nil
}

// stepExportCSV dumps the catalog back to the canonical CSV.
func (r *Runner) stepExportCSV(ctx context.Context, _ *State) error {
	entries, err := r.repo.All(ctx)
	if err != nil {
		return err
	}
	path := r.paths.CSVPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := (&codec.CSVCodec{}).Export(entries, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.log.Info("catalog exported", zap.Int("entries", len(entries)), zap.String("path", path))
	return nil
}

func (r *Runner) stepScreenshots(ctx context.Context, _ *State) error {
	launcher := emulator.New(r.paths.FSUAE, r.log)
	capturer := screenshot.New(r.repo, launcher, emulator.Config{Model: "A1200"},
		r.paths.ScreenshotDir(), r.log)
	_, failed, err := capturer.Run(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		r.log.Warn("screenshot sessions failed", zap.Int("count", failed))
	}
	return nil
}

// stepBuild returns the image assembly step for one config file.
func (r *Runner) stepBuild(configName string, opts imager.Options) Step {
	return Step{
		Name: "build",
		Run: func(ctx context.Context, st *State) error {
			cfg, err := config.LoadImageConfig(filepath.Join(r.opts.ConfigDir, configName))
			if err != nil {
				return err
			}
			res, err := imager.New(r.repo, r.paths, r.log).Build(ctx, cfg, opts)
			if err != nil {
				return err
			}
			st.Config = cfg
			st.Image = res
			return nil
		},
	}
}

// stepLaunch boots the freshly built image in the emulator and waits for
// it to exit. The image is only relocated afterwards, so an aborted test
// session never leaves a half-verified image in the destination.
func (r *Runner) stepLaunch(ctx context.Context, st *State) error {
	if st.Image == nil || st.Image.OutputPath == "" {
		return fmt.Errorf("no image to launch")
	}
	emuCfg := emulator.Config{
		Model:      st.Config.Emulator.Model,
		Kickstart:  st.Config.Emulator.Kickstart,
		Fullscreen: st.Config.Emulator.Fullscreen,
		HardDrives: []string{st.Image.OutputPath},
	}
	configPath := filepath.Join(st.Image.StagingDir, st.Config.Name+".fsuae")
	if err := emulator.WriteConfig(configPath, emuCfg); err != nil {
		return err
	}
	return emulator.New(r.paths.FSUAE, r.log).Run(ctx, configPath)
}

func (r *Runner) stepRelocate(_ context.Context, st *State) error {
	if st.Image == nil || st.Image.OutputPath == "" {
		return fmt.Errorf("no image to relocate")
	}
	dest := filepath.Join(r.paths.Dest, filepath.Base(st.Image.OutputPath))
	if err := moveFile(st.Image.OutputPath, dest); err != nil {
		return err
	}
	st.Image.OutputPath = dest
	r.log.Info("image relocated", zap.String("path", dest))
	return nil
}

// stepCleanup removes the staging tree. It is tolerant: a busy mount or
// permission hiccup must not fail an otherwise finished build.
func (r *Runner) stepCleanup(_ context.Context, st *State) error {
	if st.Image == nil || st.Image.StagingDir == "" {
		return nil
	}
	return os.RemoveAll(st.Image.StagingDir)
}

// moveFile renames src to dst, copying across filesystems when rename is
// not possible.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
