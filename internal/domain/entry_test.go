package domain

import "testing"

func validEntry() *Entry {
	return &Entry{
		ID:          "game--turrican--turrican",
		Title:       "Turrican",
		ArchivePath: "game/T/Turrican_v1.1.lha",
		SlavePath:   "Turrican/Turrican.slave",
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"whdload", validEntry(), true},
		{"nil", nil, false},
		{"no title", &Entry{ID: "game--x--x", ArchivePath: "a.lha", SlavePath: "X/X.slave"}, false},
		{"no archive", &Entry{ID: "game--x--x", Title: "X", SlavePath: "X/X.slave"}, false},
		{"notwhdl without slave", &Entry{ID: "game-notwhdl--pinball", Title: "Pinball", ArchivePath: "a.lha"}, true},
		{"plain without slave", &Entry{ID: "game--x--x", Title: "X", ArchivePath: "a.lha"}, false},
	}
	for _, tt := range tests {
		if got := tt.entry.IsValid(); got != tt.want {
			t.Errorf("%s: IsValid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	e := validEntry()
	if !e.Sanitize() {
		t.Fatal("Sanitize() = false for valid entry")
	}
	if e.SlaveDir != "Turrican" || e.SlaveName != "Turrican.slave" || e.SlaveID != "Turrican" {
		t.Errorf("derived fields = %q/%q/%q", e.SlaveDir, e.SlaveName, e.SlaveID)
	}

	flat := validEntry()
	flat.SlavePath = "Flat.slave" // no directory component
	if flat.Sanitize() {
		t.Error("Sanitize() should reject slave path without directory")
	}

	nw := &Entry{ID: "demo-notwhdl--stateoftheart", Title: "State of the Art", ArchivePath: "demo-notwhdl/s.lha"}
	if !nw.Sanitize() {
		t.Error("Sanitize() should accept notwhdl entry")
	}
}

func TestSplitFields(t *testing.T) {
	e := &Entry{Language: "English, German", Country: "Germany", Publisher: ""}
	if got := e.Languages(); len(got) != 2 || got[0] != "English" || got[1] != "German" {
		t.Errorf("Languages() = %v", got)
	}
	if got := e.Countries(); len(got) != 1 || got[0] != "Germany" {
		t.Errorf("Countries() = %v", got)
	}
	if got := e.Publishers(); got != nil {
		t.Errorf("Publishers() = %v, want nil", got)
	}
	if !e.HasEnglish() {
		t.Error("HasEnglish() = false")
	}
}

func TestHardwareShort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"OCS/ECS", "OCS"},
		{"AGA/CD32", "CD32"},
		{"OCS/CDTV", "CDTV"},
		{"AGA/ECS", "AGA"},
		{"OCS/AGA", "OCS-AGA"},
		{"", ""},
	}
	for _, tt := range tests {
		e := &Entry{Hardware: tt.in}
		if got := e.HardwareShort(); got != tt.want {
			t.Errorf("HardwareShort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortSlaveName(t *testing.T) {
	long := "AVeryLongGameNameIndeedYes.slave" // 32 chars
	if got := ShortSlaveName(long); len(got) != 30 {
		t.Errorf("len(ShortSlaveName) = %d, want 30", len(got))
	} else if got != "AVeryLongGameNameIndeedY.slave" {
		t.Errorf("ShortSlaveName = %q", got)
	}
	if got := ShortSlaveName("Short.slave"); got != "Short.slave" {
		t.Errorf("short name modified: %q", got)
	}
	if got := ShortSlaveName("NoExtensionButReallyQuiteLongName"); got != "NoExtensionButReallyQuiteLongName" {
		t.Errorf("non-slave name modified: %q", got)
	}
}

func TestWHDSubdir(t *testing.T) {
	tests := []struct {
		id, slaveDir, want string
	}{
		{"game--turrican--turrican", "Turrican", "G/T"},
		{"demo--stateofart--stateofart", "StateOfArt", "D/S"},
		{"mags--romnews--romnews", "RomNews", "M/R"},
		{"game--10thfloor--10thfloor", "10thFloor", "G/0-9"},
		{"game-notwhdl--pinball", "", "N"},
	}
	for _, tt := range tests {
		e := &Entry{ID: tt.id, Title: "t", ArchivePath: "a.lha", SlaveDir: tt.slaveDir}
		if tt.slaveDir != "" {
			e.SlavePath = tt.slaveDir + "/x.slave"
		}
		if got := e.WHDSubdir(); got != tt.want {
			t.Errorf("WHDSubdir(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestAmigaWHDDir(t *testing.T) {
	e := validEntry()
	e.Sanitize()
	if got := e.AmigaWHDDir(); got != "WHD:G/T/Turrican" {
		t.Errorf("AmigaWHDDir() = %q", got)
	}

	nw := &Entry{ID: "game-notwhdl--pinball", Title: "Pinball", ArchivePath: "a.lha"}
	if got := nw.AmigaWHDDir(); got != "" {
		t.Errorf("AmigaWHDDir() for notwhdl = %q, want empty", got)
	}
}

func TestNameIsFuzzy(t *testing.T) {
	if !NameIsFuzzy("turrican") {
		t.Error("plain name should be fuzzy")
	}
	if NameIsFuzzy("game--turrican--turrican") {
		t.Error("qualified id should not be fuzzy")
	}
}
