package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// Name resolution walks a ladder of id patterns from most to least specific,
// so a bare "turrican" finds the canonical WHDLoad install before any
// re-release or fuzzy substring match.

func lookupPatterns(name string) []string {
	n := strings.ToLower(name)
	return []string{
		n,
		"game--" + n,
		"game--" + n + "--" + n,
		"game--" + n + "files--" + n + "files",
		"game--" + n + "ntsc--" + n + "ntsc",
		"game--" + n + "2mb--" + n + "2mb",
		"game--" + n + "1mb--" + n + "1mb",
		"game--" + n + "512kb--" + n + "512kb",
		"game--" + n + "aga--" + n + "aga",
		"game--" + n + "image--" + n + "image",
		"game--" + n + "4disk--" + n + "4disk",
		"game--" + n + "3disk--" + n + "3disk",
		"game--" + n + "2disk--" + n + "2disk",
		"demo--" + n,
		"demo--" + n + "--" + n,
		"game-notwhdl--" + n + "%",
		"demo-notwhdl--" + n + "%",
		"mags-notwhdl--" + n + "%",
		"game--" + n + "%",
		"demo--" + n + "%",
		"%--" + n + "%",
		"%" + n + "%",
	}
}

// Resolve finds the best entry for a name and chases its preferred version.
// Either result may be nil.
func (r *Repository) Resolve(ctx context.Context, name string) (*domain.Entry, *domain.Entry, error) {
	return r.resolve(ctx, name, 0)
}

// Preferred-version chains in the catalog are short; the depth cap only
// guards against an accidental cycle in the data.
const maxPreferredDepth = 8

func (r *Repository) resolve(ctx context.Context, name string, depth int) (*domain.Entry, *domain.Entry, error) {
	if depth > maxPreferredDepth {
		return nil, nil, fmt.Errorf("preferred_version chain too deep at %q", name)
	}

	for _, pattern := range lookupPatterns(name) {
		var er entryRow
		err := r.db.QueryRowContext(ctx,
			`SELECT `+entryColumns+` FROM titles WHERE id LIKE ? ORDER BY id LIMIT 1`,
			strings.ToLower(pattern)).Scan(er.scanArgs()...)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query pattern %q: %w", pattern, err)
		}

		entry := er.toDomain()
		if !entry.Sanitize() {
			continue
		}

		var preferred *domain.Entry
		if entry.PreferredVersion != "" {
			preferred, _, err = r.resolve(ctx, entry.PreferredVersion, depth+1)
			if err != nil {
				return nil, nil, err
			}
		}
		return entry, preferred, nil
	}
	return nil, nil, nil
}
