package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rendis/procdesigner/pkg/schema"
)

// appendRevision inserts the next revision row for a process inside tx.
// The number is read back from processes, which Save has already bumped.
func appendRevision(ctx context.Context, tx *sql.Tx, processID, body string, version int, at time.Time) (int, error) {
	var rev int
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM processes WHERE id = ?`, processID).Scan(&rev); err != nil {
		return 0, storeError("read revision", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO process_revisions (process_id, revision, payload, format_version, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		processID, rev, body, version, len(body), at,
	)
	if err != nil {
		return 0, storeError("append revision", err)
	}
	return rev, nil
}

// ListRevisions returns the revision history of a process, newest first,
// without payload bodies.
func (s *LibSQLStore) ListRevisions(ctx context.Context, processID string) ([]*Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT process_id, revision, format_version, size_bytes, created_at
		 FROM process_revisions WHERE process_id = ? ORDER BY revision DESC`, processID,
	)
	if err != nil {
		return nil, storeError("list revisions", err)
	}
	defer rows.Close()

	var out []*Revision
	for rows.Next() {
		r := &Revision{}
		if err := rows.Scan(&r.ProcessID, &r.Revision, &r.FormatVersion, &r.SizeBytes, &r.CreatedAt); err != nil {
			return nil, storeError("scan revision", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) LoadRevision(ctx context.Context, processID string, revision int) (*Revision, error) {
	r := &Revision{}
	err := s.db.QueryRowContext(ctx,
		`SELECT process_id, revision, payload, format_version, size_bytes, created_at
		 FROM process_revisions WHERE process_id = ? AND revision = ?`, processID, revision,
	).Scan(&r.ProcessID, &r.Revision, &r.Payload, &r.FormatVersion, &r.SizeBytes, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "revision %d of process %q not found", revision, processID)
	}
	if err != nil {
		return nil, storeError("load revision", err)
	}
	return r, nil
}

func (s *LibSQLStore) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "keep must be at least 1, got %d", keep)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM process_revisions WHERE revision <= (
			SELECT p.revision - ? FROM processes p WHERE p.id = process_revisions.process_id
		)`, keep,
	)
	if err != nil {
		return 0, storeError("prune revisions", err)
	}
	return res.RowsAffected()
}
