package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/onaryc/AmigaVision/internal/domain"
	"github.com/onaryc/AmigaVision/internal/emulator"
	"github.com/onaryc/AmigaVision/internal/repository/sqlite"
)

// fakeEmulator writes a numbered capture into the directory named by the
// screenshots_output_dir line of its config file, mimicking FS-UAE.
func fakeEmulator(t *testing.T, fail bool) string {
	t.Helper()
	body := `#!/bin/sh
dir=$(sed -n 's/^screenshots_output_dir = //p' "$1")
prefix=$(sed -n 's/^screenshots_output_prefix = //p' "$1")
touch "$dir/$prefix-001.png"
`
	if fail {
		body = "#!/bin/sh\nexit 1\n"
	}
	path := filepath.Join(t.TempDir(), "fs-uae")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedRepo(t *testing.T, n int) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()
	for i := 0; i < n; i++ {
		e := domain.Entry{
			ID:          fmt.Sprintf("game--title%d--title%d", i, i),
			Title:       fmt.Sprintf("Title %d", i),
			Category:    "game",
			ArchivePath: fmt.Sprintf("game/T/Title%d.lha", i),
		}
		if err := repo.Upsert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

func TestRunCapturesMissing(t *testing.T) {
	repo := seedRepo(t, 3)
	outDir := t.TempDir()

	// one title already captured
	if err := os.WriteFile(filepath.Join(outDir, "game--title0--title0.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	launcher := emulator.New(fakeEmulator(t, false), nil)
	c := New(repo, launcher, emulator.Config{Model: "A1200"}, outDir, nil)

	captured, failed, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if captured != 2 || failed != 0 {
		t.Fatalf("captured=%d failed=%d, want 2/0", captured, failed)
	}
	for i := 0; i < 3; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("game--title%d--title%d.png", i, i))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s", p)
		}
	}
}

func TestRunCountsFailures(t *testing.T) {
	repo := seedRepo(t, 2)
	launcher := emulator.New(fakeEmulator(t, true), nil)
	c := New(repo, launcher, emulator.Config{Model: "A1200"}, t.TempDir(), nil)

	captured, failed, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if captured != 0 || failed != 2 {
		t.Fatalf("captured=%d failed=%d, want 0/2", captured, failed)
	}
}

func TestRunSkipsTitlesWithoutArchive(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	e := domain.Entry{ID: "game--x--x", Title: "X", Category: "game"}
	if err := repo.Upsert(context.Background(), &e); err != nil {
		t.Fatal(err)
	}

	launcher := emulator.New(fakeEmulator(t, false), nil)
	c := New(repo, launcher, emulator.Config{Model: "A1200"}, t.TempDir(), nil)

	captured, failed, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if captured != 0 || failed != 0 {
		t.Fatalf("captured=%d failed=%d, want 0/0", captured, failed)
	}
}

func TestCaptureNeverClaimsPrefixedTitlesFile(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	e := domain.Entry{
		ID: "game--rtype--rtype", Title: "R-Type", Category: "game",
		ArchivePath: "game/R/RType.lha",
	}
	if err := repo.Upsert(context.Background(), &e); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	// a suffix-variant title's numbered capture already sits in outDir
	stray := filepath.Join(outDir, "game--rtype--rtype2mb-001.png")
	if err := os.WriteFile(stray, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	// emulator exits cleanly but produces nothing
	bin := filepath.Join(t.TempDir(), "fs-uae")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := New(repo, emulator.New(bin, nil), emulator.Config{Model: "A1200"}, outDir, nil)

	captured, failed, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if captured != 0 || failed != 1 {
		t.Fatalf("captured=%d failed=%d, want 0/1", captured, failed)
	}
	if _, err := os.Stat(stray); err != nil {
		t.Error("another title's capture was renamed away")
	}
	if _, err := os.Stat(c.Path("game--rtype--rtype")); err == nil {
		t.Error("screenshot fabricated from another title's capture")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	repo := seedRepo(t, 5)
	launcher := emulator.New(fakeEmulator(t, false), nil)
	c := New(repo, launcher, emulator.Config{Model: "A1200"}, t.TempDir(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
