package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// CSVCodec reads and writes the canonical titles CSV. The column order is
// fixed so exports diff cleanly under version control.
type CSVCodec struct{}

// NewCSVCodec creates a new CSV codec
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Format returns the codec format identifier
func (c *CSVCodec) Format() string {
	return "csv"
}

var csvColumns = []string{
	"id", "title", "archive_path", "slave_path", "slave_version",
	"preferred_version", "category", "year", "publisher", "developer",
	"language", "country", "hardware", "aga", "ntsc", "issues", "hack", "note",
}

// Parse imports entries from CSV. The header row decides column positions,
// so column reordering in the source file is harmless.
func (c *CSVCodec) Parse(r io.Reader) ([]domain.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, fmt.Errorf("CSV has no id column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var entries []domain.Entry
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		e := domain.Entry{
			ID:               field(record, "id"),
			Title:            field(record, "title"),
			ArchivePath:      field(record, "archive_path"),
			SlavePath:        field(record, "slave_path"),
			SlaveVersion:     field(record, "slave_version"),
			PreferredVersion: field(record, "preferred_version"),
			Category:         field(record, "category"),
			Publisher:        field(record, "publisher"),
			Developer:        field(record, "developer"),
			Language:         field(record, "language"),
			Country:          field(record, "country"),
			Hardware:         field(record, "hardware"),
			Issues:           field(record, "issues"),
			Hack:             field(record, "hack"),
			Note:             field(record, "note"),
		}
		if e.ID == "" {
			return nil, fmt.Errorf("CSV line %d has empty id", line)
		}
		e.Year, _ = strconv.Atoi(field(record, "year"))
		e.AGA, _ = strconv.Atoi(field(record, "aga"))
		e.NTSC, _ = strconv.Atoi(field(record, "ntsc"))
		entries = append(entries, e)
	}
	return entries, nil
}

// Export writes entries as CSV, sorted by id
func (c *CSVCodec) Export(entries []domain.Entry, w io.Writer) error {
	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range sorted {
		e := &sorted[i]
		record := []string{
			e.ID, e.Title, e.ArchivePath, e.SlavePath, e.SlaveVersion,
			e.PreferredVersion, e.Category, intField(e.Year), e.Publisher,
			e.Developer, e.Language, e.Country, e.Hardware,
			strconv.Itoa(e.AGA), strconv.Itoa(e.NTSC), e.Issues, e.Hack, e.Note,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record for %s: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// intField renders zero years as empty, matching the canonical CSV
func intField(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
