// Package index scans the content tree for WHDLoad archives and keeps the
// titles catalog in sync with what is actually on disk.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/onaryc/AmigaVision/internal/lha"
	"github.com/onaryc/AmigaVision/internal/repository"
)

// Archive categories recognized under the titles directory. The -notwhdl
// variants hold plain disk images driven by a .run script instead of a
// WHDLoad slave.
var (
	whdlCategories    = map[string]bool{"game": true, "demo": true, "mags": true}
	notWHDLCategories = map[string]bool{"game-notwhdl": true, "demo-notwhdl": true, "mags-notwhdl": true}
)

// ArchiveInfo describes one discovered archive.
type ArchiveInfo struct {
	ID           string
	ArchivePath  string // relative to the titles directory
	SlavePath    string
	SlaveVersion string
}

// Report summarizes one indexer run.
type Report struct {
	Scanned         int
	Pruned          []string // ids whose archive vanished
	Attached        []string // ids that gained an archive
	NoEntry         []string // archive paths with no catalog entry
	MissingArchives []string // ids without any archive (verbose only)
	MissingImages   []string // ids without a menu image (verbose only)
}

// Indexer correlates the content tree with the catalog.
type Indexer struct {
	repo repository.Repository
	log  *zap.Logger
}

// New creates an Indexer. A nil logger disables logging.
func New(repo repository.Repository, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{repo: repo, log: log}
}

// Scan enumerates WHDLoad archives under titlesDir, keyed by slave id.
func (ix *Indexer) Scan(titlesDir string) (map[string]ArchiveInfo, error) {
	found := make(map[string]ArchiveInfo)
	err := filepath.WalkDir(titlesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".lha") {
			return nil
		}
		if !lha.IsArchive(path) {
			ix.log.Warn("not a valid lha file", zap.String("path", path))
			return nil
		}

		rel, err := filepath.Rel(titlesDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		category, _, ok := strings.Cut(rel, "/")
		if !ok {
			return nil // archives at the tree root have no category
		}

		switch {
		case whdlCategories[category]:
			infos, err := scanSlaves(path, rel, category)
			if err != nil {
				ix.log.Warn("unreadable archive", zap.String("path", path), zap.Error(err))
				return nil
			}
			for _, info := range infos {
				found[info.ID] = info
			}
		case notWHDLCategories[category]:
			// plain titles need a .run script next to the archive
			if _, err := os.Stat(strings.TrimSuffix(path, ".lha") + ".run"); err != nil {
				return nil
			}
			base := strings.TrimSuffix(filepath.Base(path), ".lha")
			id := category + "--" + strings.ToLower(base)
			found[id] = ArchiveInfo{ID: id, ArchivePath: rel}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", titlesDir, err)
	}
	return found, nil
}

// scanSlaves lists the .slave members of one archive and derives their ids.
func scanSlaves(path, rel, category string) ([]ArchiveInfo, error) {
	arc, err := lha.Open(path)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	version := slaveVersion(filepath.Base(path))

	var infos []ArchiveInfo
	for _, name := range arc.Names() {
		if !strings.HasSuffix(strings.ToLower(name), ".slave") {
			continue
		}
		// skip slaves buried beneath the install directory
		if strings.Count(name, "/") > 1 {
			continue
		}
		id := category + "--" + strings.ToLower(strings.ReplaceAll(name[:len(name)-6], "/", "--"))
		infos = append(infos, ArchiveInfo{
			ID:           id,
			ArchivePath:  rel,
			SlavePath:    name,
			SlaveVersion: version,
		})
	}
	return infos, nil
}

// slaveVersion extracts the version tag from an archive filename like
// Turrican_v1.1.lha, defaulting to v1.0.
func slaveVersion(base string) string {
	base = strings.TrimSuffix(base, ".lha")
	parts := strings.Split(base, "_")
	if len(parts) > 1 && strings.HasPrefix(parts[1], "v") {
		return parts[1]
	}
	return "v1.0"
}

// Run synchronizes the catalog with the content tree: prune entries whose
// archive vanished, attach newly discovered archives, and (verbose) report
// titles still missing archives or menu images.
func (ix *Indexer) Run(ctx context.Context, titlesDir, imageDir string, verbose bool) (*Report, error) {
	if info, err := os.Stat(titlesDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("titles dir not found (%s)", titlesDir)
	}

	report := &Report{}

	// prune vanished archives
	entries, err := ix.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if e.ArchivePath == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(titlesDir, filepath.FromSlash(e.ArchivePath))); err == nil {
			continue
		}
		if err := ix.repo.ClearArchive(ctx, e.ID); err != nil {
			return nil, err
		}
		ix.log.Info("archive removed", zap.String("id", e.ID), zap.String("path", e.ArchivePath))
		report.Pruned = append(report.Pruned, e.ID)
	}

	// enumerate archives, correlate with the catalog
	found, err := ix.Scan(titlesDir)
	if err != nil {
		return nil, err
	}
	report.Scanned = len(found)

	for _, arc := range found {
		ok, err := ix.repo.HasEntry(ctx, arc.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			ix.log.Info("no db entry", zap.String("path", arc.ArchivePath), zap.String("id", arc.ID))
			report.NoEntry = append(report.NoEntry, arc.ArchivePath)
			continue
		}
		ids, err := ix.repo.AttachArchive(ctx, arc.ID, arc.ArchivePath, arc.SlavePath, arc.SlaveVersion)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			ix.log.Info("archive added", zap.String("path", arc.ArchivePath), zap.String("id", id))
		}
		report.Attached = append(report.Attached, ids...)
	}

	if verbose {
		entries, err := ix.repo.All(ctx)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			e := &entries[i]
			if e.ArchivePath == "" {
				report.MissingArchives = append(report.MissingArchives, e.ID)
			}
			if _, err := os.Stat(filepath.Join(imageDir, e.ID+".iff")); err != nil {
				report.MissingImages = append(report.MissingImages, e.ID)
			}
		}
		if len(report.MissingArchives) > 0 {
			ix.log.Info("titles missing archives", zap.Strings("ids", report.MissingArchives))
		}
		if len(report.MissingImages) > 0 {
			ix.log.Info("titles missing images", zap.Strings("ids", report.MissingImages))
		}
	}

	return report, nil
}
