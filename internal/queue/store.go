package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ripwatch/internal/config"
)

// ErrNotFound indicates the requested item does not exist.
var ErrNotFound = errors.New("queue item not found")

// Store manages transcode item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "queue.db"))
}

// OpenPath connects to the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewItem inserts a newly detected file.
func (s *Store) NewItem(ctx context.Context, sessionID, sourcePath string, detectedAt time.Time) (*Item, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO items (session_id, source_path, status, detected_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		sourcePath,
		StatusDetected,
		formatTime(detectedAt),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkTranscoding transitions an item into the transcoding state.
func (s *Store) MarkTranscoding(ctx context.Context, id int64, startedAt time.Time) error {
	return s.update(ctx, id,
		"status = ?, started_at = ?",
		StatusTranscoding, formatTime(startedAt),
	)
}

// MarkCompleted records a successful transcode outcome.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string, finishedAt time.Time) error {
	return s.update(ctx, id,
		"status = ?, output_path = ?, finished_at = ?",
		StatusCompleted, outputPath, formatTime(finishedAt),
	)
}

// MarkFailed records a failed transcode outcome with error detail.
func (s *Store) MarkFailed(ctx context.Context, id int64, detail string, finishedAt time.Time) error {
	if strings.TrimSpace(detail) == "" {
		detail = "transcode failed"
	}
	return s.update(ctx, id,
		"status = ?, error_message = ?, finished_at = ?",
		StatusFailed, detail, formatTime(finishedAt),
	)
}

func (s *Store) update(ctx context.Context, id int64, setClause string, args ...any) error {
	args = append(args, formatTime(time.Now().UTC()), id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+setClause+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = `id, session_id, source_path, output_path, status, error_message,
    detected_at, started_at, finished_at, created_at, updated_at`

// GetByID fetches an item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// List returns items, newest first, optionally filtered by statuses.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := "SELECT " + itemColumns + " FROM items"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSession returns items for a single session, oldest first.
func (s *Store) ListSession(ctx context.Context, sessionID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE session_id = ? ORDER BY id ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Clear removes all items and returns the number deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items")
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed items and returns the number deleted.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE status = ?", StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed items: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuck moves items stranded in the transcoding state back to detected,
// for recovery after an unclean daemon stop.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET status = ?, updated_at = ? WHERE status = ?",
		StatusDetected, formatTime(time.Now().UTC()), StatusTranscoding)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// Health summarizes item counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM items GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch status {
		case StatusDetected:
			summary.Detected = count
		case StatusTranscoding:
			summary.Transcoding = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var detectedAt, startedAt, finishedAt, createdAt, updatedAt string
	if err := row.Scan(
		&item.ID,
		&item.SessionID,
		&item.SourcePath,
		&item.OutputPath,
		&item.Status,
		&item.ErrorMessage,
		&detectedAt,
		&startedAt,
		&finishedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	item.DetectedAt = parseTime(detectedAt)
	item.StartedAt = parseTime(startedAt)
	item.FinishedAt = parseTime(finishedAt)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
