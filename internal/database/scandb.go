package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/rdpscan/internal/model"
)

// FileName is the name of the history database inside the data directory.
const FileName = "rdpscan.db"

// ErrRunNotFound is returned when a run ID does not exist in the history.
var ErrRunNotFound = errors.New("scan run not found")

// ScanDB provides SQLite-based storage for scan runs and the endpoints
// found alive in each of them.
type ScanDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
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

// Open opens or creates a ScanDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
	}

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

// Path returns the database file path.
func (sdb *ScanDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- One row per invocation of the scan command
	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		alive INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		kinds TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scan_runs(started_at);

	-- Endpoints that answered as RDP during a run, in report order
	CREATE TABLE IF NOT EXISTS run_endpoints (
		run_id INTEGER NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_endpoints_endpoint ON run_endpoints(endpoint);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is the stored metadata of one scan.
type Run struct {
	ID          int64                   `json:"id"`
	Input       string                  `json:"input,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	Elapsed     time.Duration           `json:"elapsed_ns"`
	Total       int                     `json:"total"`
	Completed   int                     `json:"completed"`
	Alive       int                     `json:"alive"`
	Interrupted bool                    `json:"interrupted,omitempty"`
	Kinds       map[model.ErrorKind]int `json:"kinds,omitempty"`
}

// Failed returns the number of completed probes that did not find RDP.
func (r Run) Failed() int {
	return r.Completed - r.Alive
}

// SaveRun stores a finished scan and its alive endpoints in one transaction.
// It returns the ID assigned to the run.
func (sdb *ScanDB) SaveRun(ctx context.Context, summary *model.Summary) (int64, error) {
	kindsJSON, err := json.Marshal(summary.Kinds)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize outcome kinds: %w", err)
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scan_runs (input, started_at, elapsed_ms, total, completed, alive, interrupted, kinds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.Input,
		summary.StartedAt.UTC().Format(time.RFC3339Nano),
		summary.Elapsed.Milliseconds(),
		summary.Total,
		summary.Completed,
		summary.AliveCount(),
		summary.Interrupted,
		string(kindsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_endpoints (run_id, position, endpoint) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare endpoint insert: %w", err)
	}
	defer stmt.Close()

	for i, ep := range summary.Alive {
		if _, err := stmt.ExecContext(ctx, id, i, ep.String()); err != nil {
			return 0, fmt.Errorf("failed to insert endpoint %s: %w", ep, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan run: %w", err)
	}
	return id, nil
}

const runColumns = `id, input, started_at, elapsed_ms, total, completed, alive, interrupted, kinds`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		startedAt   string
		elapsedMS   int64
		interrupted int
		kindsJSON   sql.NullString
	)

	if err := row.Scan(&run.ID, &run.Input, &startedAt, &elapsedMS,
		&run.Total, &run.Completed, &run.Alive, &interrupted, &kindsJSON); err != nil {
		return Run{}, err
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Interrupted = interrupted != 0
	run.Kinds = make(map[model.ErrorKind]int)
	if kindsJSON.Valid && kindsJSON.String != "" {
		// A row written by a newer version may carry kinds this one
		// does not know; the counts are informational only.
		_ = json.Unmarshal([]byte(kindsJSON.String), &run.Kinds)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first. A limit <= 0 returns all runs.
func (sdb *ScanDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM scan_runs ORDER BY id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID or ErrRunNotFound.
func (sdb *ScanDB) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := sdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scan_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return &run, nil
}

// GetRunEndpoints returns the alive endpoints of a run in report order.
func (sdb *ScanDB) GetRunEndpoints(ctx context.Context, id int64) ([]model.Endpoint, error) {
	if _, err := sdb.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := sdb.db.QueryContext(ctx,
		`SELECT endpoint FROM run_endpoints WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := make([]model.Endpoint, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		ep, err := model.ParseEndpoint(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt endpoint in run %d: %w", id, err)
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// RunDiff lists how the alive set changed between two runs.
type RunDiff struct {
	From        int64            `json:"from"`
	To          int64            `json:"to"`
	Appeared    []model.Endpoint `json:"appeared"`
	Disappeared []model.Endpoint `json:"disappeared"`
	Unchanged   int              `json:"unchanged"`
}

// HasChanges reports whether any endpoint appeared or disappeared.
func (d *RunDiff) HasChanges() bool {
	return len(d.Appeared) > 0 || len(d.Disappeared) > 0
}

// Diff compares the alive endpoints of run from with those of run to.
// Appeared holds endpoints alive only in to, Disappeared those alive only
// in from. Both keep the order of their source run.
func (sdb *ScanDB) Diff(ctx context.Context, from, to int64) (*RunDiff, error) {
	before, err := sdb.GetRunEndpoints(ctx, from)
	if err != nil {
		return nil, err
	}
	after, err := sdb.GetRunEndpoints(ctx, to)
	if err != nil {
		return nil, err
	}

	diff := &RunDiff{
		From:        from,
		To:          to,
		Appeared:    missingFrom(after, before),
		Disappeared: missingFrom(before, after),
	}
	diff.Unchanged = len(unique(after)) - len(diff.Appeared)
	return diff, nil
}

// missingFrom returns the distinct endpoints of a that are not in b.
func missingFrom(a, b []model.Endpoint) []model.Endpoint {
	seen := make(map[model.Endpoint]struct{}, len(b))
	for _, ep := range b {
		seen[ep] = struct{}{}
	}

	out := make([]model.Endpoint, 0)
	for _, ep := range unique(a) {
		if _, ok := seen[ep]; !ok {
			out = append(out, ep)
		}
	}
	return out
}

func unique(eps []model.Endpoint) []model.Endpoint {
	seen := make(map[model.Endpoint]struct{}, len(eps))
	out := make([]model.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
