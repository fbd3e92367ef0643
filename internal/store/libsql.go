package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Processes ---

func (s *LibSQLStore) CreateProcess(ctx context.Context, p *Process) error {
	if p.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "process id is required")
	}
	now := timeOrNow(p.CreatedAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processes (id, name, payload, format_version, revision, created_at, updated_at)
		 VALUES (?, ?, '', ?, 0, ?, ?) ON CONFLICT(id) DO NOTHING`,
		p.ID, nullStr(p.Name), payload.VersionLegacy, now, now,
	)
	if err != nil {
		return storeError("create process", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("create process", err)
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeConflict, "process %q already exists", p.ID)
	}
	return nil
}

func (s *LibSQLStore) Load(ctx context.Context, processID string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM processes WHERE id = ?`, processID).Scan(&body)
	if err == sql.ErrNoRows {
		return "", storeNotFound("process", processID)
	}
	if err != nil {
		return "", storeError("load process", err)
	}
	return body, nil
}

// Save writes the payload and its revision row in one transaction.
func (s *LibSQLStore) Save(ctx context.Context, processID, body string) (*SaveResult, error) {
	if processID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "process id is required")
	}
	version := payload.DetectVersion(body)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("begin save", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO processes (id, payload, format_version, revision, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, format_version=excluded.format_version,
		 revision=processes.revision + 1, updated_at=excluded.updated_at`,
		processID, body, version, now, now,
	)
	if err != nil {
		return nil, storeError("save process", err)
	}

	rev, err := appendRevision(ctx, tx, processID, body, version, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storeError("commit save", err)
	}
	return &SaveResult{Success: true, Message: fmt.Sprintf("process %s saved (revision %d)", processID, rev), Revision: rev}, nil
}

func (s *LibSQLStore) ListProcesses(ctx context.Context, filter ProcessFilter) ([]*Process, error) {
	query := `SELECT id, name, format_version, revision, created_at, updated_at FROM processes`
	var where []string
	var args []any
	if filter.Since != nil {
		where = append(where, "updated_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list processes", err)
	}
	defer rows.Close()

	var out []*Process
	for rows.Next() {
		p := &Process{}
		var name sql.NullString
		if err := rows.Scan(&p.ID, &name, &p.FormatVersion, &p.Revision, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, storeError("scan process", err)
		}
		p.Name = name.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.DesignerError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) *schema.DesignerError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*LibSQLStore)(nil)
