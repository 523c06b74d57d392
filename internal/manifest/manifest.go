// Package manifest maintains the per-archive content manifests: a YAML
// file next to each .lha mapping member names to SHA-256 checksums of
// their decompressed contents. Manifests let the collection be verified
// end to end without trusting archive CRCs alone.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/onaryc/AmigaVision/internal/lha"
)

// Suffix appended to an archive path to form its manifest path.
const Suffix = ".yaml"

// Builder creates and verifies manifests under a content tree.
type Builder struct {
	log *zap.Logger
}

// New creates a Builder. A nil logger disables logging.
func New(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log}
}

// ManifestPath returns the manifest file path for an archive.
func ManifestPath(archivePath string) string {
	return archivePath + Suffix
}

// Build writes manifests for every valid .lha under dir. With onlyMissing
// set, archives that already have a manifest are skipped. It returns the
// number of manifests written.
func (b *Builder) Build(dir string, onlyMissing bool) (int, error) {
	written := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".lha") {
			return nil
		}
		if !lha.IsArchive(path) {
			b.log.Warn("not a valid lha file", zap.String("path", path))
			return nil
		}
		if onlyMissing {
			if _, err := os.Stat(ManifestPath(path)); err == nil {
				return nil
			}
		}
		if err := b.writeManifest(path); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("build manifests: %w", err)
	}
	b.log.Info("manifests written", zap.Int("count", written))
	return written, nil
}

func (b *Builder) writeManifest(archivePath string) error {
	arc, err := lha.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer arc.Close()

	contents := make(map[string]string)
	for _, name := range arc.Names() {
		data, err := arc.Read(name)
		if err != nil {
			return fmt.Errorf("%s: %w", archivePath, err)
		}
		sum := sha256.Sum256(data)
		contents[name] = hex.EncodeToString(sum[:])
	}

	f, err := os.Create(ManifestPath(archivePath))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(contents); err != nil {
		return fmt.Errorf("encode manifest for %s: %w", archivePath, err)
	}
	return enc.Close()
}

// Load reads one manifest file. A nil map with nil error means the file
// was unparsable.
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var contents map[string]string
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, nil
	}
	return contents, nil
}

// Verify checks every manifest under dir against its archive and returns
// the number of inconsistencies found. Individual problems are logged and
// counted; only I/O failures abort the walk.
func (b *Builder) Verify(dir string) (int, error) {
	problems := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".lha"+Suffix) {
			return nil
		}

		archivePath := strings.TrimSuffix(path, Suffix)
		if !lha.IsArchive(archivePath) {
			b.log.Error("lha file missing or corrupt", zap.String("path", archivePath))
			problems++
			return nil
		}

		contents, err := Load(path)
		if err != nil {
			return err
		}
		if contents == nil {
			b.log.Error("manifest corrupt", zap.String("path", path))
			problems++
			return nil
		}

		arc, err := lha.Open(archivePath)
		if err != nil {
			b.log.Error("lha file missing or corrupt", zap.String("path", archivePath), zap.Error(err))
			problems++
			return nil
		}
		defer arc.Close()

		names := make(map[string]bool)
		for _, n := range arc.Names() {
			names[n] = true
		}

		for member, want := range contents {
			if !names[member] {
				b.log.Error("file missing in archive",
					zap.String("member", member), zap.String("archive", archivePath))
				problems++
				continue
			}
			data, err := arc.Read(member)
			if err != nil {
				b.log.Error("member unreadable",
					zap.String("member", member), zap.String("archive", archivePath), zap.Error(err))
				problems++
				continue
			}
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != want {
				b.log.Error("incorrect checksum",
					zap.String("member", member), zap.String("archive", archivePath))
				problems++
			}
		}
		return nil
	})
	if err != nil {
		return problems, fmt.Errorf("verify manifests: %w", err)
	}

	if problems > 0 {
		b.log.Warn("manifest check completed with inconsistencies", zap.Int("count", problems))
	} else {
		b.log.Info("manifest check completed: all good")
	}
	return problems, nil
}
