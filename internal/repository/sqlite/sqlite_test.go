package sqlite

import (
	"context"
	"testing"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func seed(t *testing.T, repo *Repository, entries ...domain.Entry) {
	t.Helper()
	for i := range entries {
		if err := repo.Upsert(context.Background(), &entries[i]); err != nil {
			t.Fatalf("seed %s: %v", entries[i].ID, err)
		}
	}
}

func TestUpsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := domain.Entry{
		ID:          "game--turrican--turrican",
		Title:       "Turrican",
		ArchivePath: "game/T/Turrican_v1.1.lha",
		SlavePath:   "Turrican/Turrican.slave",
		Year:        1990,
		Publisher:   "Rainbow Arts",
		Language:    "English",
		Hardware:    "OCS/ECS",
	}
	seed(t, repo, e)

	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing entry")
	}
	if got.Title != "Turrican" || got.Year != 1990 || got.Publisher != "Rainbow Arts" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// update via upsert
	e.Title = "Turrican (updated)"
	seed(t, repo, e)
	got, _ = repo.Get(ctx, e.ID)
	if got.Title != "Turrican (updated)" {
		t.Errorf("upsert did not update: %q", got.Title)
	}

	missing, err := repo.Get(ctx, "game--nothere--nothere")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("Get for missing id should return nil")
	}
}

func TestClearAndAttachArchive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo,
		domain.Entry{ID: "game--lotus--lotus", Title: "Lotus", ArchivePath: "game/L/Lotus.lha", SlavePath: "Lotus/Lotus.slave"},
		domain.Entry{ID: "game--lotus--lotus2", Title: "Lotus 2"},
	)

	if err := repo.ClearArchive(ctx, "game--lotus--lotus"); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.Get(ctx, "game--lotus--lotus")
	if got.ArchivePath != "" || got.SlavePath != "" {
		t.Errorf("ClearArchive left %+v", got)
	}

	// attach matches both the exact id and the prefixed variant, but only
	// rows without an archive
	ids, err := repo.AttachArchive(ctx, "game--lotus", "game/L/Lotus_v2.lha", "Lotus/Lotus.slave", "v2.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("AttachArchive updated %v, want 2 rows", ids)
	}
	got, _ = repo.Get(ctx, "game--lotus--lotus2")
	if got.ArchivePath != "game/L/Lotus_v2.lha" || got.SlaveVersion != "v2.0" {
		t.Errorf("attach did not stick: %+v", got)
	}

	// second attach is a no-op: everything has an archive now
	ids, err = repo.AttachArchive(ctx, "game--lotus", "other.lha", "x", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("repeated attach updated %v", ids)
	}
}

func TestHasEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo, domain.Entry{ID: "demo--stateofart--stateofart", Title: "State of the Art"})

	for _, id := range []string{"demo--stateofart--stateofart", "demo--stateofart"} {
		ok, err := repo.HasEntry(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("HasEntry(%q) = false", id)
		}
	}
	ok, _ := repo.HasEntry(ctx, "demo--unknown")
	if ok {
		t.Error("HasEntry for unknown id = true")
	}
}

func TestReplaceAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo, domain.Entry{ID: "game--old--old", Title: "Old"})

	err := repo.ReplaceAll(ctx, []domain.Entry{
		{ID: "game--a--a", Title: "A"},
		{ID: "game--b--b", Title: "B"},
	})
	if err != nil {
		t.Fatal(err)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "game--a--a" || all[1].ID != "game--b--b" {
		t.Errorf("All() after ReplaceAll = %+v", all)
	}
}

func TestResolveLadder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo,
		domain.Entry{
			ID: "game--turrican--turrican", Title: "Turrican",
			ArchivePath: "game/T/Turrican.lha", SlavePath: "Turrican/Turrican.slave",
		},
		domain.Entry{
			ID: "game--turrican2--turrican2", Title: "Turrican II",
			ArchivePath: "game/T/Turrican2.lha", SlavePath: "Turrican2/Turrican2.slave",
		},
		domain.Entry{
			ID: "demo--hardwired--hardwired", Title: "Hardwired",
			ArchivePath: "demo/H/Hardwired.lha", SlavePath: "Hardwired/Hardwired.slave",
		},
		domain.Entry{
			ID: "game-notwhdl--pinballdreams", Title: "Pinball Dreams",
			ArchivePath: "game-notwhdl/P/PinballDreams.lha",
		},
	)

	tests := []struct {
		name   string
		wantID string
	}{
		{"turrican", "game--turrican--turrican"},
		{"game--turrican2--turrican2", "game--turrican2--turrican2"},
		{"hardwired", "demo--hardwired--hardwired"},
		{"pinballdreams", "game-notwhdl--pinballdreams"},
		{"Turrican", "game--turrican--turrican"}, // case-insensitive
	}
	for _, tt := range tests {
		entry, _, err := repo.Resolve(ctx, tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if entry == nil {
			t.Errorf("Resolve(%q) = nil", tt.name)
			continue
		}
		if entry.ID != tt.wantID {
			t.Errorf("Resolve(%q) = %s, want %s", tt.name, entry.ID, tt.wantID)
		}
	}

	entry, _, err := repo.Resolve(ctx, "doesnotexist")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("Resolve(doesnotexist) = %+v", entry)
	}
}

func TestResolveDerivedFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo, domain.Entry{
		ID: "game--turrican--turrican", Title: "Turrican",
		ArchivePath: "game/T/Turrican.lha", SlavePath: "Turrican/Turrican.slave",
	})

	entry, _, err := repo.Resolve(ctx, "turrican")
	if err != nil {
		t.Fatal(err)
	}
	if entry.SlaveDir != "Turrican" || entry.SlaveName != "Turrican.slave" {
		t.Errorf("derived fields not set: %+v", entry)
	}
}

func TestResolvePreferredVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo,
		domain.Entry{
			ID: "game--rtype--rtype", Title: "R-Type",
			ArchivePath: "game/R/RType.lha", SlavePath: "RType/RType.slave",
			PreferredVersion: "game--rtypeaga--rtypeaga",
		},
		domain.Entry{
			ID: "game--rtypeaga--rtypeaga", Title: "R-Type AGA",
			ArchivePath: "game/R/RTypeAGA.lha", SlavePath: "RTypeAGA/RTypeAGA.slave", AGA: 1,
		},
	)

	entry, preferred, err := repo.Resolve(ctx, "rtype")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.ID != "game--rtype--rtype" {
		t.Fatalf("entry = %+v", entry)
	}
	if preferred == nil || preferred.ID != "game--rtypeaga--rtypeaga" {
		t.Errorf("preferred = %+v", preferred)
	}
}

func TestResolvePreferredCycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed(t, repo,
		domain.Entry{
			ID: "game--a--a", Title: "A",
			ArchivePath: "a.lha", SlavePath: "A/A.slave",
			PreferredVersion: "game--b--b",
		},
		domain.Entry{
			ID: "game--b--b", Title: "B",
			ArchivePath: "b.lha", SlavePath: "B/B.slave",
			PreferredVersion: "game--a--a",
		},
	)

	if _, _, err := repo.Resolve(ctx, "game--a--a"); err == nil {
		t.Error("expected cycle error")
	}
}
