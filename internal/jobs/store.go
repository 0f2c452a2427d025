package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"scenesub/internal/config"
)

// timestampLayout is fixed width so text ordering in SQL matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages job persistence backed by SQLite. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the job database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: func() time.Time { return time.Now().UTC() }}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const jobColumns = "id, source_name, content_hash, threshold, model, language, status, scene_count, cue_count, scenes_available, subtitle_path, error_message, elapsed_ms, created_at, updated_at"

// thresholdKey stores thresholds as exact decimal text so reuse lookups do
// not depend on float formatting.
func thresholdKey(threshold float64) string {
	return decimal.NewFromFloat(threshold).String()
}

// Create inserts a pending job.
func (s *Store) Create(ctx context.Context, in NewJob) (*Job, error) {
	if strings.TrimSpace(in.ContentHash) == "" {
		return nil, errors.New("create job: content hash required")
	}
	id := uuid.NewString()
	timestamp := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_name, content_hash, threshold, model, language, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		in.SourceName,
		in.ContentHash,
		thresholdKey(in.Threshold),
		in.Model,
		strings.ToLower(strings.TrimSpace(in.Language)),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// MarkRunning moves a job to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.exec(ctx, id, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		StatusRunning, s.stamp(), id)
}

// Complete records a successful outcome.
func (s *Store) Complete(ctx context.Context, id string, out Outcome) error {
	return s.exec(ctx, id,
		`UPDATE jobs
         SET status = ?, scene_count = ?, cue_count = ?, scenes_available = ?, subtitle_path = ?,
             elapsed_ms = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		out.SceneCount,
		out.CueCount,
		boolToInt(out.ScenesAvailable),
		out.SubtitlePath,
		out.Elapsed.Milliseconds(),
		s.stamp(),
		id,
	)
}

// Fail records an error message.
func (s *Store) Fail(ctx context.Context, id string, message string) error {
	return s.exec(ctx, id, `UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, nullableString(message), s.stamp(), id)
}

// FailInterrupted marks jobs left running by a previous process as failed and
// returns how many were updated.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusFailed, "interrupted before completion", s.stamp(), StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update job %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get fetches a job by identifier. A missing job returns nil and no error.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns the most recent jobs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

// FindCompleted returns the newest completed job for identical content and
// settings, or nil when none exists.
func (s *Store) FindCompleted(ctx context.Context, hash string, threshold float64, model, language string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE content_hash = ? AND threshold = ? AND model = ? AND language = ? AND status = ?
         ORDER BY updated_at DESC LIMIT 1`,
		hash, thresholdKey(threshold), model, strings.ToLower(strings.TrimSpace(language)), StatusCompleted)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed job: %w", err)
	}
	return job, nil
}

// Counts returns the number of jobs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		threshold    string
		status       string
		scenesAvail  int64
		subtitlePath sql.NullString
		errorMessage sql.NullString
		elapsedMS    int64
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.SourceName,
		&job.ContentHash,
		&threshold,
		&job.Model,
		&job.Language,
		&status,
		&job.SceneCount,
		&job.CueCount,
		&scenesAvail,
		&subtitlePath,
		&errorMessage,
		&elapsedMS,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("parse threshold %q: %w", threshold, err)
	}
	job.Threshold, _ = d.Float64()
	job.Status = Status(status)
	job.ScenesAvailable = scenesAvail != 0
	job.SubtitlePath = subtitlePath.String
	job.ErrorMessage = errorMessage.String
	job.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
