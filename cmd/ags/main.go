package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/onaryc/AmigaVision/internal/codec"
	"github.com/onaryc/AmigaVision/internal/config"
	"github.com/onaryc/AmigaVision/internal/domain"
	"github.com/onaryc/AmigaVision/internal/pipeline"
	"github.com/onaryc/AmigaVision/internal/repository/sqlite"
	"github.com/onaryc/AmigaVision/internal/watcher"
)

var (
	// Global flags
	verbose   bool
	envFile   string
	configDir string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ags",
	Short: "AmigaVision game shelf build pipeline",
	Long: `ags maintains the AmigaVision collection: it indexes WHDLoad archives
into the titles catalog, keeps per-archive content manifests, captures
menu screenshots, and assembles bootable FFS disk images with the AGS
shelf on them.

Paths come from a .env file (AGSCONTENT, AGSDEST, AGSTEMP, FSUAEBIN) or
the process environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// targetCommands maps every pipeline target to its help text and whether
// it needs the emulator binary.
var targetCommands = []struct {
	name   string
	short  string
	launch bool
}{
	{"index", "Synchronize the titles catalog with the content tree", false},
	{"manifests", "Write content manifests for every archive", false},
	{"missing-manifests", "Write content manifests only where missing", false},
	{"verify-manifests", "Check every archive against its manifest", false},
	{"sqlite", "Rebuild the SQLite catalog from the canonical CSV", false},
	{"csv", "Dump the catalog to the canonical CSV", false},
	{"screenshots", "Capture menu screenshots for titles missing one", true},
	{"image", "Build, test-boot, and publish the MegaAGS image", true},
	{"pocket-image", "Build, test-boot, and publish the Analogue Pocket image", true},
	{"mini-image", "Build, test-boot, and publish the A500 Mini image", true},
	{"test-image", "Build the test image and boot it, without publishing", true},
	{"test-dry", "Assemble the shelf tree only, for inspection", false},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file with pipeline paths")
	rootCmd.PersistentFlags().StringVar(&configDir, "configs", "configs", "image config directory")

	for _, tc := range targetCommands {
		tc := tc
		rootCmd.AddCommand(&cobra.Command{
			Use:   tc.name,
			Short: tc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				runner, _, cleanup, err := newRunner(tc.launch)
				if err != nil {
					return err
				}
				defer cleanup()
				return runner.Run(cmd.Context(), tc.name)
			},
		})
	}

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv, yaml, json)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

// newRunner resolves the environment and opens the catalog.
func newRunner(launch bool) (*pipeline.Runner, *config.Paths, func(), error) {
	paths, err := config.LoadPaths(envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := paths.Verify(launch); err != nil {
		return nil, nil, nil, err
	}
	repo, err := sqlite.New(paths.DBPath())
	if err != nil {
		return nil, nil, nil, err
	}
	runner := pipeline.New(paths, repo, logger,
		pipeline.Options{Verbose: verbose, ConfigDir: configDir})
	return runner, paths, func() { repo.Close() }, nil
}

var queryCmd = &cobra.Command{
	Use:   "query <name>",
	Short: "Resolve a title name against the catalog",
	Long: `query shows how a (possibly fuzzy) name resolves: the matching entry,
its archive and slave, and the preferred version that would actually be
shelved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := config.LoadPaths(envFile)
		if err != nil {
			return err
		}
		repo, err := sqlite.New(paths.DBPath())
		if err != nil {
			return err
		}
		defer repo.Close()

		entry, preferred, err := repo.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("no match for %q", args[0])
		}
		printEntry("match", entry)
		if preferred != nil && preferred.ID != entry.ID {
			printEntry("preferred", preferred)
		}
		return nil
	},
}

func printEntry(label string, e *domain.Entry) {
	fmt.Printf("%s: %s\n", label, e.ID)
	fmt.Printf("  title:    %s\n", e.Title)
	if e.Year > 0 || e.Publisher != "" {
		fmt.Printf("  release:  %d %s\n", e.Year, e.Publisher)
	}
	if e.ArchivePath != "" {
		fmt.Printf("  archive:  %s\n", e.ArchivePath)
	}
	if e.SlavePath != "" {
		fmt.Printf("  slave:    %s (%s)\n", e.SlavePath, e.SlaveVersion)
	}
	if hw := e.HardwareShort(); hw != "" {
		fmt.Printf("  hardware: %s\n", hw)
	}
}

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog to stdout in csv, yaml, or json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var exp codec.Exporter
		switch exportFormat {
		case "csv":
			exp = &codec.CSVCodec{}
		case "yaml":
			exp = &codec.YAMLCodec{}
		case "json":
			exp = &codec.JSONCodec{}
		default:
			return fmt.Errorf("unknown format %q", exportFormat)
		}

		paths, err := config.LoadPaths(envFile)
		if err != nil {
			return err
		}
		repo, err := sqlite.New(paths.DBPath())
		if err != nil {
			return err
		}
		defer repo.Close()

		entries, err := repo.All(cmd.Context())
		if err != nil {
			return err
		}
		return exp.Export(entries, os.Stdout)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the content tree and re-index on archive changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, paths, cleanup, err := newRunner(false)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		w := watcher.New(paths.Titles(), func() {
			if err := runner.Run(ctx, "index"); err != nil {
				logger.Error("reindex failed", zap.Error(err))
			}
		}, logger)

		err = w.Watch(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
