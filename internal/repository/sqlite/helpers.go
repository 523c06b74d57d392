package sqlite

import (
	"database/sql"
	"strings"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// entryRow holds all columns from a title query for scanning
type entryRow struct {
	ID               string
	Title            string
	ArchivePath      sql.NullString
	SlavePath        sql.NullString
	SlaveVersion     sql.NullString
	PreferredVersion sql.NullString
	Category         sql.NullString
	Year             sql.NullInt64
	Publisher        sql.NullString
	Developer        sql.NullString
	Language         sql.NullString
	Country          sql.NullString
	Hardware         sql.NullString
	AGA              int
	NTSC             int
	Issues           sql.NullString
	Hack             sql.NullString
	Note             sql.NullString
}

// entryColumns is the SELECT column list for title queries.
// Order must match scanArgs exactly.
const entryColumns = `id, title, archive_path, slave_path, slave_version,
	preferred_version, category, year, publisher, developer, language,
	country, hardware, aga, ntsc, issues, hack, note`

// insertColumns matches entryColumns without the timestamp columns
const insertColumns = `id, title, archive_path, slave_path, slave_version,
	preferred_version, category, year, publisher, developer, language,
	country, hardware, aga, ntsc, issues, hack, note`

var insertPlaceholders = strings.TrimSuffix(strings.Repeat("?, ", 18), ", ")

// scanArgs returns pointers to all fields for sql.Scan()
func (r *entryRow) scanArgs() []any {
	return []any{
		&r.ID, &r.Title, &r.ArchivePath, &r.SlavePath, &r.SlaveVersion,
		&r.PreferredVersion, &r.Category, &r.Year, &r.Publisher, &r.Developer,
		&r.Language, &r.Country, &r.Hardware, &r.AGA, &r.NTSC,
		&r.Issues, &r.Hack, &r.Note,
	}
}

// toDomain converts the scanned row to a domain.Entry
func (r *entryRow) toDomain() *domain.Entry {
	return &domain.Entry{
		ID:               r.ID,
		Title:            r.Title,
		ArchivePath:      nullToString(r.ArchivePath),
		SlavePath:        nullToString(r.SlavePath),
		SlaveVersion:     nullToString(r.SlaveVersion),
		PreferredVersion: nullToString(r.PreferredVersion),
		Category:         nullToString(r.Category),
		Year:             int(r.Year.Int64),
		Publisher:        nullToString(r.Publisher),
		Developer:        nullToString(r.Developer),
		Language:         nullToString(r.Language),
		Country:          nullToString(r.Country),
		Hardware:         nullToString(r.Hardware),
		AGA:              r.AGA,
		NTSC:             r.NTSC,
		Issues:           nullToString(r.Issues),
		Hack:             nullToString(r.Hack),
		Note:             nullToString(r.Note),
	}
}

// entryInsertArgs prepares arguments for title INSERT/UPSERT in
// insertColumns order
func entryInsertArgs(e *domain.Entry) []any {
	var year sql.NullInt64
	if e.Year != 0 {
		year = sql.NullInt64{Int64: int64(e.Year), Valid: true}
	}
	return []any{
		e.ID,
		e.Title,
		stringToNull(e.ArchivePath),
		stringToNull(e.SlavePath),
		stringToNull(e.SlaveVersion),
		stringToNull(e.PreferredVersion),
		stringToNull(e.Category),
		year,
		stringToNull(e.Publisher),
		stringToNull(e.Developer),
		stringToNull(e.Language),
		stringToNull(e.Country),
		stringToNull(e.Hardware),
		e.AGA,
		e.NTSC,
		stringToNull(e.Issues),
		stringToNull(e.Hack),
		stringToNull(e.Note),
	}
}
