package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/creatorcrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "creatorcrawl.db"

// ErrRunNotFound is returned when a run ID is not stored.
var ErrRunNotFound = errors.New("run not found")

// SnapshotDB stores harvests for later comparison.
type SnapshotDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures SnapshotDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the snapshot database in dbDir.
func Open(dbDir string, opts Options) (*SnapshotDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SnapshotDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (s *SnapshotDB) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SnapshotDB) Path() string {
	return s.dbPath
}

func (s *SnapshotDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		categories TEXT NOT NULL,
		category_counts TEXT NOT NULL,
		extracted INTEGER NOT NULL,
		unique_records INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		image_url TEXT NOT NULL,
		is_recommended INTEGER NOT NULL,
		monthly_revenue REAL NOT NULL,
		total_revenue REAL NOT NULL,
		number_of_patrons REAL NOT NULL,
		tags TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// RunMetadata summarizes a stored run.
type RunMetadata struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Categories     []string
	CategoryCounts map[string]int
	Extracted      int
	Unique         int
}

// SaveHarvest stores h and its catalog in one transaction. Saving the same
// harvest twice replaces the earlier copy.
func (s *SnapshotDB) SaveHarvest(ctx context.Context, h *model.Harvest) error {
	categoriesJSON, err := json.Marshal(h.Categories)
	if err != nil {
		return fmt.Errorf("failed to serialize categories: %w", err)
	}
	countsJSON, err := json.Marshal(h.CategoryCounts)
	if err != nil {
		return fmt.Errorf("failed to serialize category counts: %w", err)
	}

	finished := h.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, categories, category_counts, extracted, unique_records)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		categories = excluded.categories,
		category_counts = excluded.category_counts,
		extracted = excluded.extracted,
		unique_records = excluded.unique_records
	`,
		h.ID,
		h.StartedAt.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
		string(categoriesJSON),
		string(countsJSON),
		h.Extracted,
		len(h.Catalog),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, h.ID); err != nil {
		return fmt.Errorf("failed to clear run records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (run_id, url, name, image_url, is_recommended,
		monthly_revenue, total_revenue, number_of_patrons, tags, fingerprint)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range h.Catalog.Sorted() {
		tagsJSON, err := json.Marshal(r.Tags)
		if err != nil {
			return fmt.Errorf("failed to serialize tags of %s: %w", r.URL, err)
		}
		if _, err := stmt.ExecContext(ctx,
			h.ID,
			r.URL,
			r.Name,
			r.ImageURL,
			r.IsRecommended,
			r.MonthlyRevenue,
			r.TotalRevenue,
			r.NumberOfPatrons,
			string(tagsJSON),
			r.Fingerprint(),
		); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *SnapshotDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, started_at, finished_at, categories, category_counts, extracted, unique_records
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the metadata of run id, or ErrRunNotFound.
func (s *SnapshotDB) GetRun(ctx context.Context, id string) (RunMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, started_at, finished_at, categories, category_counts, extracted, unique_records
	FROM runs WHERE id = ?
	`, id)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMetadata{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return meta, err
}

// LoadCatalog returns the records stored for run id.
func (s *SnapshotDB) LoadCatalog(ctx context.Context, id string) (model.Catalog, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT url, name, image_url, is_recommended, monthly_revenue, total_revenue, number_of_patrons, tags
	FROM records WHERE run_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	catalog := make(model.Catalog)
	for rows.Next() {
		var (
			r        model.Record
			tagsJSON string
		)
		if err := rows.Scan(&r.URL, &r.Name, &r.ImageURL, &r.IsRecommended,
			&r.MonthlyRevenue, &r.TotalRevenue, &r.NumberOfPatrons, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags of %s: %w", r.URL, err)
		}
		catalog[r.URL] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return catalog, nil
}

// ChangedURLs returns the URLs present in both runs whose fingerprints differ.
func (s *SnapshotDB) ChangedURLs(ctx context.Context, olderID, newerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT n.url
	FROM records n
	JOIN records o ON o.url = n.url AND o.run_id = ?
	WHERE n.run_id = ? AND o.fingerprint <> n.fingerprint
	ORDER BY n.url
	`, olderID, newerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed records: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *SnapshotDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunMetadata, error) {
	var (
		meta               RunMetadata
		started, finished  string
		categories, counts string
	)
	if err := row.Scan(&meta.ID, &started, &finished, &categories, &counts, &meta.Extracted, &meta.Unique); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunMetadata{}, err
		}
		return RunMetadata{}, fmt.Errorf("failed to scan run: %w", err)
	}
	meta.StartedAt = parseTimestamp(started)
	meta.FinishedAt = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(categories), &meta.Categories); err != nil {
		return RunMetadata{}, fmt.Errorf("failed to parse categories: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &meta.CategoryCounts); err != nil {
		return RunMetadata{}, fmt.Errorf("failed to parse category counts: %w", err)
	}
	return meta, nil
}

// timestampFormats lists formats tried by parseTimestamp, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a stored timestamp. Unknown formats give the zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
