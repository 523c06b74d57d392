package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onaryc/AmigaVision/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS titles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		archive_path TEXT,
		slave_path TEXT,
		slave_version TEXT,
		preferred_version TEXT,
		category TEXT,
		year INTEGER,
		publisher TEXT,
		developer TEXT,
		language TEXT,
		country TEXT,
		hardware TEXT,
		aga INTEGER NOT NULL DEFAULT 0,
		ntsc INTEGER NOT NULL DEFAULT 0,
		issues TEXT,
		hack TEXT,
		note TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_titles_category ON titles(category);
	CREATE INDEX IF NOT EXISTS idx_titles_year ON titles(year);
	CREATE INDEX IF NOT EXISTS idx_titles_publisher ON titles(publisher);
	`

	_, err := r.db.Exec(schema)
	return err
}

// All loads every entry ordered by id
func (r *Repository) All(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM titles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var er entryRow
		if err := rows.Scan(er.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		entries = append(entries, *er.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating titles: %w", err)
	}
	return entries, nil
}

// Get retrieves a single entry by id, nil when absent
func (r *Repository) Get(ctx context.Context, id string) (*domain.Entry, error) {
	var er entryRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM titles WHERE id = ?`, id).Scan(er.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query title: %w", err)
	}
	return er.toDomain(), nil
}

// Upsert inserts or updates an entry
func (r *Repository) Upsert(ctx context.Context, e *domain.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO titles (`+insertColumns+`, updated_at)
		VALUES (`+insertPlaceholders+`, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			archive_path = excluded.archive_path,
			slave_path = excluded.slave_path,
			slave_version = excluded.slave_version,
			preferred_version = excluded.preferred_version,
			category = excluded.category,
			year = excluded.year,
			publisher = excluded.publisher,
			developer = excluded.developer,
			language = excluded.language,
			country = excluded.country,
			hardware = excluded.hardware,
			aga = excluded.aga,
			ntsc = excluded.ntsc,
			issues = excluded.issues,
			hack = excluded.hack,
			note = excluded.note,
			updated_at = CURRENT_TIMESTAMP
	`, entryInsertArgs(e)...)
	if err != nil {
		return fmt.Errorf("failed to upsert title %s: %w", e.ID, err)
	}
	return nil
}

// ClearArchive removes the archive association from an entry whose archive
// has vanished from the content tree
func (r *Repository) ClearArchive(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE titles
		SET archive_path = NULL, slave_path = NULL, slave_version = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to clear archive for %s: %w", id, err)
	}
	return nil
}

// AttachArchive associates a discovered archive with every matching entry
// (exact id or id prefix) that has no archive yet. It returns the ids that
// were updated.
func (r *Repository) AttachArchive(ctx context.Context, id, archivePath, slavePath, slaveVersion string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM titles
		WHERE (id = ? OR id LIKE ?) AND (archive_path IS NULL OR archive_path = '')
	`, id, id+"--%")
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s: %w", id, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var matched string
		if err := rows.Scan(&matched); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, matched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	for _, matched := range ids {
		_, err := r.db.ExecContext(ctx, `
			UPDATE titles
			SET archive_path = ?, slave_path = ?, slave_version = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, stringToNull(archivePath), stringToNull(slavePath), stringToNull(slaveVersion), matched)
		if err != nil {
			return nil, fmt.Errorf("failed to attach archive to %s: %w", matched, err)
		}
	}
	return ids, nil
}

// HasEntry reports whether any entry matches the id exactly or by prefix
func (r *Repository) HasEntry(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM titles WHERE id = ? OR id LIKE ?`, id, id+"--%").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count matches: %w", err)
	}
	return n > 0, nil
}

// ReplaceAll replaces the whole catalog in one transaction
func (r *Repository) ReplaceAll(ctx context.Context, entries []domain.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM titles`); err != nil {
		return fmt.Errorf("failed to clear titles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO titles (`+insertColumns+`) VALUES (`+insertPlaceholders+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		if _, err := stmt.ExecContext(ctx, entryInsertArgs(&entries[i])...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", entries[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
