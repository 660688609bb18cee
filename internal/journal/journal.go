// Package journal archives finished exports seen in the queue history.
// The service only reports its most recent history entries, so the client
// keeps its own record.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// Entry is one archived job.
type Entry struct {
	ID         int64
	Host       string
	VMName     string
	Status     domain.JobStatus
	FilePath   string
	Error      string
	BatchTime  string
	RecordedAt time.Time
}

// Journal stores finished jobs in SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host TEXT NOT NULL,
			vm_name TEXT NOT NULL,
			status TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			batch_time TEXT NOT NULL DEFAULT '',
			recorded_at INTEGER NOT NULL,
			UNIQUE (host, vm_name, batch_time, status, file_path, error)
		);
		CREATE INDEX IF NOT EXISTS idx_exports_recorded ON exports(recorded_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record archives the terminal jobs among jobs. Jobs already recorded are
// skipped, so the same history can be passed on every poll. It returns the
// number of new entries.
func (j *Journal) Record(ctx context.Context, host string, jobs []domain.JobRecord) (int, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO exports (host, vm_name, status, file_path, error, batch_time, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	added := 0
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		res, err := stmt.ExecContext(ctx, host, job.VMName, string(job.Status), job.FilePath, job.Error, job.Timestamp, now)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", job.VMName, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if added > 0 {
		j.logger.Debug("journal updated", "host", host, "added", added)
	}
	return added, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, host, vm_name, status, file_path, error, batch_time, recorded_at
		FROM exports
		ORDER BY recorded_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var status string
		var recorded int64
		if err := rows.Scan(&e.ID, &e.Host, &e.VMName, &status, &e.FilePath, &e.Error, &e.BatchTime, &recorded); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.Status = domain.JobStatus(status)
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of archived entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
