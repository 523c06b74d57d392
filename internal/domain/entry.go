package domain

import (
	"strings"
)

// Entry categories as encoded in the id prefix.
const (
	CategoryGame = "game"
	CategoryDemo = "demo"
	CategoryMags = "mags"
)

// Entry is one title in the catalog. IDs follow the collection convention
// "<category>--<dir>--<slave>" for WHDLoad titles and
// "<category>-notwhdl--<archive>" for everything else.
type Entry struct {
	ID               string `yaml:"id" json:"id"`
	Title            string `yaml:"title" json:"title"`
	ArchivePath      string `yaml:"archive_path,omitempty" json:"archive_path,omitempty"`
	SlavePath        string `yaml:"slave_path,omitempty" json:"slave_path,omitempty"`
	SlaveVersion     string `yaml:"slave_version,omitempty" json:"slave_version,omitempty"`
	PreferredVersion string `yaml:"preferred_version,omitempty" json:"preferred_version,omitempty"`
	Category         string `yaml:"category,omitempty" json:"category,omitempty"`
	Year             int    `yaml:"year,omitempty" json:"year,omitempty"`
	Publisher        string `yaml:"publisher,omitempty" json:"publisher,omitempty"`
	Developer        string `yaml:"developer,omitempty" json:"developer,omitempty"`
	Language         string `yaml:"language,omitempty" json:"language,omitempty"`
	Country          string `yaml:"country,omitempty" json:"country,omitempty"`
	Hardware         string `yaml:"hardware,omitempty" json:"hardware,omitempty"`
	AGA              int    `yaml:"aga,omitempty" json:"aga,omitempty"`
	NTSC             int    `yaml:"ntsc,omitempty" json:"ntsc,omitempty"`
	Issues           string `yaml:"issues,omitempty" json:"issues,omitempty"`
	Hack             string `yaml:"hack,omitempty" json:"hack,omitempty"`
	Note             string `yaml:"note,omitempty" json:"note,omitempty"`

	// Derived from SlavePath by Sanitize; never persisted.
	SlaveDir  string `yaml:"-" json:"-"`
	SlaveName string `yaml:"-" json:"-"`
	SlaveID   string `yaml:"-" json:"-"`
}

// IsValid reports whether the entry can be placed on an image: it needs an
// id, a title, an archive, and either a WHDLoad slave or a notwhdl id.
func (e *Entry) IsValid() bool {
	if e == nil || e.ID == "" || e.Title == "" || e.ArchivePath == "" {
		return false
	}
	if e.SlavePath != "" {
		return true
	}
	return e.IsNotWHDL()
}

// IsNotWHDL reports whether the entry is a plain (non-WHDLoad) title.
func (e *Entry) IsNotWHDL() bool {
	if e == nil {
		return false
	}
	return strings.Contains(e.ID, "game-notwhdl--") ||
		strings.Contains(e.ID, "demo-notwhdl--") ||
		strings.Contains(e.ID, "mags-notwhdl--")
}

// IsAGA reports whether the entry requires the AGA chipset.
func (e *Entry) IsAGA() bool {
	return e.IsValid() && e.AGA > 0
}

// IsDemo reports whether the entry belongs to the demoscene shelf.
func (e *Entry) IsDemo() bool {
	return e != nil && (strings.HasPrefix(e.ID, "demo--") || strings.HasPrefix(e.ID, "demo-notwhdl--"))
}

// IsGame reports whether the entry belongs to the game shelf.
func (e *Entry) IsGame() bool {
	return e != nil && (strings.HasPrefix(e.ID, "game--") || strings.HasPrefix(e.ID, "game-notwhdl--"))
}

// Sanitize fills the derived slave fields. It returns false when the entry
// is unusable (invalid, or a WHDLoad entry whose slave path has no directory
// component).
func (e *Entry) Sanitize() bool {
	if e.IsNotWHDL() {
		return true
	}
	if !e.IsValid() {
		return false
	}
	i := strings.IndexByte(e.SlavePath, '/')
	if i <= 0 {
		return false
	}
	e.SlaveDir = e.SlavePath[:i]
	e.SlaveName = e.SlavePath[i+1:]
	e.SlaveID = e.SlaveName
	if n := strings.LastIndex(e.SlaveName, "."); n > 0 && strings.EqualFold(e.SlaveName[n:], ".slave") {
		e.SlaveID = e.SlaveName[:n]
	}
	return true
}

// HasEnglish reports whether English is among the entry's languages.
func (e *Entry) HasEnglish() bool {
	return strings.Contains(strings.ToLower(e.Language), "english")
}

// Languages splits the comma-separated language field.
func (e *Entry) Languages() []string { return splitList(e.Language) }

// Countries splits the comma-separated country field.
func (e *Entry) Countries() []string { return splitList(e.Country) }

// Publishers splits the comma-separated publisher field.
func (e *Entry) Publishers() []string { return splitList(e.Publisher) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ", ") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HardwareShort compacts the hardware field for display on the shelf.
func (e *Entry) HardwareShort() string {
	hw := e.Hardware
	if hw == "" {
		return ""
	}
	hw = strings.ReplaceAll(hw, "/ECS", "")
	hw = strings.ReplaceAll(hw, "AGA/CD32", "CD32")
	hw = strings.ReplaceAll(hw, "OCS/CDTV", "CDTV")
	return strings.ReplaceAll(hw, "/", "-")
}

// NameIsFuzzy reports whether a lookup name is a free-form search term
// rather than a fully qualified id.
func NameIsFuzzy(name string) bool {
	return !strings.Contains(name, "--")
}

// ShortSlaveName trims an overlong slave filename to the 30-character limit
// WHDLoad tolerates, preserving the .slave extension.
func ShortSlaveName(name string) string {
	excess := len(name) - 30
	if excess <= 0 {
		return name
	}
	parts := strings.Split(name, ".")
	if len(parts) == 2 && strings.EqualFold(parts[1], "slave") {
		base := parts[0]
		if excess < len(base) {
			return base[:len(base)-excess] + "." + parts[1]
		}
	}
	return name
}

// shelfLetter buckets a slave directory under its leading character, with
// digits collapsed into "0-9".
func shelfLetter(dir string) string {
	if dir == "" {
		return "0-9"
	}
	c := dir[0]
	if c >= '0' && c <= '9' {
		return "0-9"
	}
	return strings.ToUpper(string(c))
}

// WHDSubdir returns the path of the entry's install directory relative to
// the WHD root of the image tree ("G/T/Turrican", "D/...", "M/...", or "N"
// for non-WHDLoad titles).
func (e *Entry) WHDSubdir() string {
	if e.IsNotWHDL() {
		return "N"
	}
	letter := shelfLetter(e.SlaveDir)
	switch {
	case strings.HasPrefix(e.ID, "demo--"):
		return "D/" + letter
	case strings.HasPrefix(e.ID, "mags--"):
		return "M/" + letter
	default:
		return "G/" + letter
	}
}

// AmigaWHDDir returns the AmigaDOS path of the entry's install directory as
// seen from inside the booted image, or "" for non-WHDLoad entries.
func (e *Entry) AmigaWHDDir() string {
	if !e.IsValid() || e.IsNotWHDL() {
		return ""
	}
	return "WHD:" + e.WHDSubdir() + "/" + e.SlaveDir
}
