package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/onaryc/AmigaVision/internal/domain"
	"github.com/onaryc/AmigaVision/internal/lha/lhatest"
	"github.com/onaryc/AmigaVision/internal/repository/sqlite"
)

func writeTestArchive(t *testing.T, dir, name string, members ...lhatest.Member) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := lhatest.Write(path, members...); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanWHDLoadArchives(t *testing.T) {
	dir := t.TempDir()
	writeTestArchive(t, dir, "game/T/Turrican_v1.1.lha",
		lhatest.Member{Name: "Turrican/Turrican.slave", Data: []byte("slave")},
		lhatest.Member{Name: "Turrican/data.1", Data: []byte("d")},
		lhatest.Member{Name: "Turrican/deep/Other.slave", Data: []byte("too deep")},
	)

	found, err := New(nil, nil).Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := found["game--turrican--turrican"]
	if !ok {
		t.Fatalf("slave id not found, got %v", found)
	}
	if info.ArchivePath != "game/T/Turrican_v1.1.lha" {
		t.Errorf("ArchivePath = %q", info.ArchivePath)
	}
	if info.SlavePath != "Turrican/Turrican.slave" {
		t.Errorf("SlavePath = %q", info.SlavePath)
	}
	if info.SlaveVersion != "v1.1" {
		t.Errorf("SlaveVersion = %q", info.SlaveVersion)
	}
	if len(found) != 1 {
		t.Errorf("deep slave should be skipped, found %d entries", len(found))
	}
}

func TestScanVersionDefault(t *testing.T) {
	dir := t.TempDir()
	writeTestArchive(t, dir, "game/T/Turrican.lha",
		lhatest.Member{Name: "Turrican/Turrican.slave", Data: []byte("s")},
	)

	found, err := New(nil, nil).Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v := found["game--turrican--turrican"].SlaveVersion; v != "v1.0" {
		t.Errorf("SlaveVersion = %q, want v1.0", v)
	}
}

func TestScanNotWHDL(t *testing.T) {
	dir := t.TempDir()
	writeTestArchive(t, dir, "game-notwhdl/P/Pinball.lha",
		lhatest.Member{Name: "Pinball/disk.adf", Data: []byte("adf")},
	)
	writeTestArchive(t, dir, "game-notwhdl/Q/Quirk.lha",
		lhatest.Member{Name: "Quirk/disk.adf", Data: []byte("adf")},
	)
	// only Pinball has a launch script
	if err := os.WriteFile(filepath.Join(dir, "game-notwhdl/P/Pinball.run"), []byte("run"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := New(nil, nil).Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("found %d entries, want 1", len(found))
	}
	info := found["game-notwhdl--pinball"]
	if info.ArchivePath != "game-notwhdl/P/Pinball.lha" {
		t.Errorf("ArchivePath = %q", info.ArchivePath)
	}
	if info.SlavePath != "" || info.SlaveVersion != "" {
		t.Errorf("notwhdl entry carries slave fields: %+v", info)
	}
}

func TestScanIgnoresJunk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "game/J"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "game/J/junk.lha"), []byte("not lha"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := New(nil, nil).Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("junk file indexed: %v", found)
	}
}

func TestRunAttachesAndReports(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	for _, e := range []domain.Entry{
		{ID: "game--turrican--turrican", Title: "Turrican", Category: "game"},
		{ID: "game--gone--gone", Title: "Gone", Category: "game",
			ArchivePath: "game/G/Gone.lha", SlavePath: "Gone/Gone.slave", SlaveVersion: "v1.0"},
	} {
		e := e
		if err := repo.Upsert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	dir := t.TempDir()
	writeTestArchive(t, dir, "game/T/Turrican.lha",
		lhatest.Member{Name: "Turrican/Turrican.slave", Data: []byte("s")},
	)
	writeTestArchive(t, dir, "game/U/Unknown.lha",
		lhatest.Member{Name: "Unknown/Unknown.slave", Data: []byte("s")},
	)

	report, err := New(repo, nil).Run(ctx, dir, filepath.Join(dir, "img"), false)
	if err != nil {
		t.Fatal(err)
	}

	if report.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", report.Scanned)
	}
	if len(report.Pruned) != 1 || report.Pruned[0] != "game--gone--gone" {
		t.Errorf("Pruned = %v", report.Pruned)
	}
	if len(report.Attached) != 1 || report.Attached[0] != "game--turrican--turrican" {
		t.Errorf("Attached = %v", report.Attached)
	}
	if len(report.NoEntry) != 1 || report.NoEntry[0] != "game/U/Unknown.lha" {
		t.Errorf("NoEntry = %v", report.NoEntry)
	}

	got, err := repo.Get(ctx, "game--turrican--turrican")
	if err != nil {
		t.Fatal(err)
	}
	if got.ArchivePath != "game/T/Turrican.lha" {
		t.Errorf("ArchivePath not attached: %q", got.ArchivePath)
	}
	gone, err := repo.Get(ctx, "game--gone--gone")
	if err != nil {
		t.Fatal(err)
	}
	if gone.ArchivePath != "" {
		t.Errorf("vanished archive not pruned: %q", gone.ArchivePath)
	}
}

func TestRunVerboseReportsMissing(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	for _, e := range []domain.Entry{
		{ID: "game--turrican--turrican", Title: "Turrican", Category: "game"},
		{ID: "game--lost--lost", Title: "Lost", Category: "game"},
	} {
		e := e
		if err := repo.Upsert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	dir := t.TempDir()
	writeTestArchive(t, dir, "game/T/Turrican.lha",
		lhatest.Member{Name: "Turrican/Turrican.slave", Data: []byte("s")},
	)
	imgDir := filepath.Join(dir, "img")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imgDir, "game--turrican--turrican.iff"), []byte("iff"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := New(repo, nil).Run(ctx, dir, imgDir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.MissingArchives) != 1 || report.MissingArchives[0] != "game--lost--lost" {
		t.Errorf("MissingArchives = %v", report.MissingArchives)
	}
	if len(report.MissingImages) != 1 || report.MissingImages[0] != "game--lost--lost" {
		t.Errorf("MissingImages = %v", report.MissingImages)
	}
}

func TestRunMissingTitlesDir(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	_, err = New(repo, nil).Run(context.Background(), filepath.Join(t.TempDir(), "absent"), "", false)
	if err == nil {
		t.Fatal("expected error for missing titles dir")
	}
}
