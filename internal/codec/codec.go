// Package codec imports and exports catalog entries in the formats the
// pipeline exchanges with the outside world: the canonical CSV, plus YAML
// and JSON dumps.
package codec

import (
	"io"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// Importer parses catalog entries from an external format
type Importer interface {
	Parse(r io.Reader) ([]domain.Entry, error)
	Format() string
}

// Exporter writes catalog entries to an external format
type Exporter interface {
	Export(entries []domain.Entry, w io.Writer) error
	Format() string
}
