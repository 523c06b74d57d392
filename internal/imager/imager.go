// Package imager assembles AGS shelf trees and builds bootable disk
// images from the titles catalog. A build stages a system volume (the
// shelf menu plus an optional base skeleton) and a WHD volume (extracted
// archives), then writes both into one FFS image.
package imager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onaryc/AmigaVision/internal/config"
	"github.com/onaryc/AmigaVision/internal/domain"
	"github.com/onaryc/AmigaVision/internal/hdf"
	"github.com/onaryc/AmigaVision/internal/lha"
	"github.com/onaryc/AmigaVision/internal/repository"
)

// menu entry basenames are capped so the .run/.txt/.iff suffix still
// fits AmigaDOS's 30-character limit
const maxMenuName = 26

// Options are the command-line content selections; they extend the
// selections in the image config.
type Options struct {
	AllGames     bool
	AllDemoscene bool
	AllDemos     bool
	AutoLists    bool
	OnlyAGSTree  bool
}

// Result describes one finished build.
type Result struct {
	RunID      string
	StagingDir string
	SystemDir  string // staged DH0 volume
	WHDDir     string // staged DH1 volume
	OutputPath string // built image, empty for tree-only builds
	Entries    int
	Extracted  uint64 // decompressed bytes placed on the WHD volume
}

// Builder assembles images.
type Builder struct {
	repo  repository.Repository
	paths *config.Paths
	log   *zap.Logger
}

// New creates a Builder. A nil logger disables logging.
func New(repo repository.Repository, paths *config.Paths, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{repo: repo, paths: paths, log: log}
}

// Build stages the shelf tree for cfg and, unless the build is tree-only,
// extracts the selected archives and writes the image. The image stays in
// the staging directory; callers relocate it once they are done with it.
func (b *Builder) Build(ctx context.Context, cfg *config.ImageConfig, opts Options) (*Result, error) {
	sel := cfg.Selections
	sel.AllGames = sel.AllGames || opts.AllGames
	sel.AllDemoscene = sel.AllDemoscene || opts.AllDemoscene
	sel.AllDemos = sel.AllDemos || opts.AllDemos
	sel.AutoLists = sel.AutoLists || opts.AutoLists
	sel.OnlyAGSTree = sel.OnlyAGSTree || opts.OnlyAGSTree

	res := &Result{RunID: uuid.NewString()}
	res.StagingDir = filepath.Join(b.paths.Temp, res.RunID)
	res.SystemDir = filepath.Join(res.StagingDir, "DH0")
	res.WHDDir = filepath.Join(res.StagingDir, "DH1")
	for _, d := range []string{res.SystemDir, res.WHDDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	b.log.Info("build started",
		zap.String("image", cfg.Name), zap.String("run", res.RunID))

	entries, err := b.selectEntries(ctx, cfg, sel)
	if err != nil {
		return nil, err
	}
	res.Entries = len(entries)
	if len(entries) == 0 {
		return nil, fmt.Errorf("imager: no titles selected for %s", cfg.Name)
	}

	if err := b.stageSystem(cfg, res.SystemDir); err != nil {
		return nil, err
	}
	if err := b.stageMenu(cfg, sel, entries, res.SystemDir); err != nil {
		return nil, err
	}

	if sel.OnlyAGSTree {
		b.log.Info("tree-only build finished",
			zap.Int("titles", res.Entries), zap.String("tree", res.SystemDir))
		return res, nil
	}

	if err := b.extractArchives(ctx, entries, res); err != nil {
		return nil, err
	}

	res.OutputPath = filepath.Join(res.StagingDir, cfg.OutputName())
	if err := b.writeImage(cfg, res); err != nil {
		return nil, err
	}

	b.log.Info("build finished",
		zap.Int("titles", res.Entries),
		zap.String("extracted", humanize.Bytes(res.Extracted)),
		zap.String("output", res.OutputPath))
	return res, nil
}

// selectEntries resolves the configured and flagged selections into a
// deduplicated, title-sorted entry list. Non-AGA targets drop AGA-only
// titles.
func (b *Builder) selectEntries(ctx context.Context, cfg *config.ImageConfig, sel config.Selections) ([]domain.Entry, error) {
	all, err := b.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Entry)
	for i := range all {
		e := all[i]
		if e.ArchivePath == "" {
			continue
		}
		switch {
		case sel.AllGames && e.IsGame():
		case sel.AllDemoscene && !e.IsGame():
		case sel.AllDemos && e.IsDemo():
		default:
			continue
		}
		byID[e.ID] = e
	}

	for _, name := range sel.Titles {
		entry, preferred, err := b.repo.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		if preferred != nil {
			entry = preferred
		}
		if entry == nil || entry.ArchivePath == "" {
			b.log.Warn("selected title not available", zap.String("name", name))
			continue
		}
		byID[entry.ID] = *entry
	}

	if !strings.EqualFold(cfg.Chipset, "AGA") {
		for id, e := range byID {
			if e.IsAGA() {
				delete(byID, id)
			}
		}
	}

	out := make([]domain.Entry, 0, len(byID))
	for _, e := range byID {
		if !e.Sanitize() {
			b.log.Warn("dropping entry with unusable slave path",
				zap.String("id", e.ID), zap.String("slave", e.SlavePath))
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// stageSystem seeds the DH0 volume from the configured base directory or
// a minimal skeleton.
func (b *Builder) stageSystem(cfg *config.ImageConfig, sysDir string) error {
	if cfg.BaseDir != "" {
		if err := copyTree(cfg.BaseDir, sysDir); err != nil {
			return fmt.Errorf("stage base dir: %w", err)
		}
	}
	for _, d := range []string{"C", "S", "Libs", "Devs"} {
		if err := os.MkdirAll(filepath.Join(sysDir, d), 0o755); err != nil {
			return err
		}
	}
	startup := filepath.Join(sysDir, "S", "startup-sequence")
	if _, err := os.Stat(startup); os.IsNotExist(err) {
		// both staged volumes merge into one partition, so the WHD tree
		// sits at the root of the boot volume
		seq := "assign WHD: SYS:WHD\nAGS\n"
		if err := os.WriteFile(startup, []byte(seq), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// stageMenu lays out the .ags shelf tree: one lettered list over all
// selected titles plus the configured auto-lists.
func (b *Builder) stageMenu(cfg *config.ImageConfig, sel config.Selections, entries []domain.Entry, sysDir string) error {
	root := filepath.Join(sysDir, "AGS.ags")

	seen := make(map[string]bool)
	for i := range entries {
		e := &entries[i]
		listDir := filepath.Join(root, menuLetter(e.Title)+".ags")
		if err := b.stageEntry(listDir, e, seen); err != nil {
			return err
		}
	}

	if !sel.AutoLists {
		return nil
	}
	for _, list := range cfg.AutoLists {
		if err := b.stageAutoList(root, list, entries); err != nil {
			return err
		}
	}
	return nil
}

// stageEntry writes the .run/.txt/.iff triple for one title.
func (b *Builder) stageEntry(listDir string, e *domain.Entry, seen map[string]bool) error {
	if err := os.MkdirAll(listDir, 0o755); err != nil {
		return err
	}
	name := uniqueMenuName(listDir, e.Title, seen)

	script, err := b.runScript(e)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(listDir, name+".run"), []byte(script), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(listDir, name+".txt"), []byte(entryNote(e)), 0o644); err != nil {
		return err
	}

	iff := filepath.Join(b.paths.ImageDir(), e.ID+".iff")
	if _, err := os.Stat(iff); err == nil {
		if err := copyFile(iff, filepath.Join(listDir, name+".iff")); err != nil {
			return err
		}
	}
	return nil
}

// runScript renders the AmigaDOS launch script for an entry. WHDLoad
// titles change into their install directory and start the slave;
// plain titles carry their own script next to the archive.
func (b *Builder) runScript(e *domain.Entry) (string, error) {
	if e.IsNotWHDL() {
		hostRun := filepath.Join(b.paths.Titles(),
			strings.TrimSuffix(filepath.FromSlash(e.ArchivePath), ".lha")+".run")
		data, err := os.ReadFile(hostRun)
		if err != nil {
			return "", fmt.Errorf("launch script for %s: %w", e.ID, err)
		}
		return string(data), nil
	}
	return fmt.Sprintf("cd %s\nwhdload %s PRELOAD\n",
		e.AmigaWHDDir(), domain.ShortSlaveName(e.SlaveName)), nil
}

func entryNote(e *domain.Entry) string {
	var b strings.Builder
	b.WriteString(e.Title + "\n")
	if e.Year > 0 || e.Publisher != "" {
		fmt.Fprintf(&b, "%d %s\n", e.Year, e.Publisher)
	}
	if hw := e.HardwareShort(); hw != "" {
		b.WriteString(hw + "\n")
	}
	if !e.HasEnglish() && e.Language != "" {
		b.WriteString(strings.Join(e.Languages(), ", ") + "\n")
	}
	if e.Note != "" {
		b.WriteString(e.Note + "\n")
	}
	return b.String()
}

// stageAutoList writes one generated list: a sub-shelf grouped by year
// or publisher.
func (b *Builder) stageAutoList(root string, list config.AutoList, entries []domain.Entry) error {
	groups := make(map[string][]*domain.Entry)
	for i := range entries {
		e := &entries[i]
		var key string
		switch list.GroupBy {
		case "year":
			if e.Year == 0 {
				continue
			}
			key = strconv.Itoa(e.Year)
		case "publisher":
			pubs := e.Publishers()
			if len(pubs) == 0 {
				continue
			}
			key = pubs[0]
		default:
			return fmt.Errorf("auto list %s: unknown group_by %q", list.Name, list.GroupBy)
		}
		groups[key] = append(groups[key], e)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// keep the largest groups when capped, then present alphabetically
	if list.Top > 0 && len(keys) > list.Top {
		sort.Slice(keys, func(i, j int) bool {
			if len(groups[keys[i]]) != len(groups[keys[j]]) {
				return len(groups[keys[i]]) > len(groups[keys[j]])
			}
			return keys[i] < keys[j]
		})
		keys = keys[:list.Top]
	}
	sort.Strings(keys)

	listRoot := filepath.Join(root, sanitizeMenuName(list.Name)+".ags")
	for _, key := range keys {
		groupDir := filepath.Join(listRoot, sanitizeMenuName(key)+".ags")
		seen := make(map[string]bool)
		for _, e := range groups[key] {
			if err := b.stageEntry(groupDir, e, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractArchives unpacks every selected archive into the WHD volume.
// Archives shared by several entries are extracted once.
func (b *Builder) extractArchives(ctx context.Context, entries []domain.Entry, res *Result) error {
	done := make(map[string]bool)
	for i := range entries {
		e := &entries[i]
		if done[e.ArchivePath] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		done[e.ArchivePath] = true

		dest := filepath.Join(res.WHDDir, "WHD", filepath.FromSlash(e.WHDSubdir()))
		n, err := b.extractArchive(filepath.Join(b.paths.Titles(), filepath.FromSlash(e.ArchivePath)), dest)
		if err != nil {
			return fmt.Errorf("extract %s: %w", e.ArchivePath, err)
		}
		res.Extracted += n
	}
	b.log.Info("archives extracted",
		zap.Int("count", len(done)), zap.String("bytes", humanize.Bytes(res.Extracted)))
	return nil
}

func (b *Builder) extractArchive(archivePath, dest string) (uint64, error) {
	arc, err := lha.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer arc.Close()

	var total uint64
	for _, name := range arc.Names() {
		data, err := arc.Read(name)
		if err != nil {
			return total, fmt.Errorf("%s: %w", name, err)
		}
		out := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return total, err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return total, err
		}
		total += uint64(len(data))
	}
	return total, nil
}

// writeImage formats the output image and copies both staged volumes in.
func (b *Builder) writeImage(cfg *config.ImageConfig, res *Result) error {
	w, err := hdf.Create(res.OutputPath, cfg.Volume, cfg.SizeMB)
	if err != nil {
		return err
	}
	if err := w.AddTree(res.SystemDir); err != nil {
		w.Close()
		return fmt.Errorf("write system volume: %w", err)
	}
	if err := w.AddTree(res.WHDDir); err != nil {
		w.Close()
		return fmt.Errorf("write WHD volume: %w", err)
	}
	return w.Close()
}

// menuLetter buckets a title under its shelf letter; leading digits and
// symbols share the 0-9 list.
func menuLetter(title string) string {
	for _, r := range title {
		if r >= 'a' && r <= 'z' {
			return strings.ToUpper(string(r))
		}
		if r >= 'A' && r <= 'Z' {
			return string(r)
		}
		return "0-9"
	}
	return "0-9"
}

// sanitizeMenuName makes a title safe as an AmigaDOS file basename.
func sanitizeMenuName(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == '/' || r == ':':
			b.WriteByte('-')
		case r < 0x20 || r > 0x7E:
			// AGS menus are plain ASCII
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if len(s) > maxMenuName {
		s = strings.TrimSpace(s[:maxMenuName])
	}
	if s == "" {
		s = "Untitled"
	}
	return s
}

// uniqueMenuName disambiguates titles that shorten to the same basename
// within one list.
func uniqueMenuName(listDir, title string, seen map[string]bool) string {
	base := sanitizeMenuName(title)
	name := base
	for i := 2; seen[filepath.Join(listDir, strings.ToLower(name))]; i++ {
		suffix := " " + strconv.Itoa(i)
		trimmed := base
		if len(trimmed)+len(suffix) > maxMenuName {
			trimmed = strings.TrimSpace(trimmed[:maxMenuName-len(suffix)])
		}
		name = trimmed + suffix
	}
	seen[filepath.Join(listDir, strings.ToLower(name))] = true
	return name
}

func copyFile(src, dst string) error {
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
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
