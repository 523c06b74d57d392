package config

// ImageConfig describes one buildable disk image (configs/*.yaml).
type ImageConfig struct {
	// Name labels the build and defaults the output filename.
	Name string `yaml:"name"`
	// Volume is the AmigaDOS volume name of the formatted image.
	Volume string `yaml:"volume"`
	// SizeMB is the raw image size in mebibytes.
	SizeMB int `yaml:"size_mb"`
	// Filesystem selects the on-disk format; only "ffs" is supported.
	Filesystem string `yaml:"filesystem"`
	// Amiga chipset the target machine provides; OCS-only targets
	// exclude AGA titles.
	Chipset string `yaml:"chipset"`
	// BaseDir is an optional directory whose contents seed the system
	// volume (Workbench skeleton, WHDLoad, the AGS shelf binary).
	BaseDir string `yaml:"base_dir"`
	// Selections are the default content selections for this image;
	// command-line flags extend them.
	Selections Selections `yaml:"selections"`
	// AutoLists defines the generated shelf list menus.
	AutoLists []AutoList `yaml:"auto_lists"`
	// Emulator overrides for the test launch.
	Emulator EmulatorConfig `yaml:"emulator"`
}

// Selections mirrors the imager's content-selection flags.
type Selections struct {
	AllGames     bool     `yaml:"all_games"`
	AllDemoscene bool     `yaml:"all_demoscene"`
	AllDemos     bool     `yaml:"all_demos"`
	AutoLists    bool     `yaml:"auto_lists"`
	OnlyAGSTree  bool     `yaml:"only_ags_tree"`
	Titles       []string `yaml:"titles"` // explicit additions by id or fuzzy name
}

// AutoList is one generated menu list on the shelf.
type AutoList struct {
	Name    string `yaml:"name"`
	GroupBy string `yaml:"group_by"` // "year" or "publisher"
	Top     int    `yaml:"top"`      // publisher lists: keep the N largest groups
}

// EmulatorConfig carries FS-UAE settings for test launches.
type EmulatorConfig struct {
	Model      string `yaml:"model"`
	Kickstart  string `yaml:"kickstart"`
	Fullscreen bool   `yaml:"fullscreen"`
}
