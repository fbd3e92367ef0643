// Package store persists encoded process diagrams.
package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// CreateProcess registers an empty process. Fails with CONFLICT if it exists.
	CreateProcess(ctx context.Context, p *Process) error
	// Load returns the latest payload of a process. An existing process that
	// was never saved returns "".
	Load(ctx context.Context, processID string) (string, error)
	// Save replaces the latest payload and appends a revision, creating the
	// process when it does not exist. Last write wins.
	Save(ctx context.Context, processID, payload string) (*SaveResult, error)

	ListProcesses(ctx context.Context, filter ProcessFilter) ([]*Process, error)
	ListRevisions(ctx context.Context, processID string) ([]*Revision, error)
	LoadRevision(ctx context.Context, processID string, revision int) (*Revision, error)
	// PruneRevisions keeps the newest keep revisions of every process and
	// returns the number of rows removed.
	PruneRevisions(ctx context.Context, keep int) (int64, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SaveResult is the answer to a save request, shaped like the designer's
// {"success": ..., "msg": ...} response.
type SaveResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"msg"`
	Revision int    `json:"revision,omitempty"`
}

// Process is the latest state of a stored process.
type Process struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Payload       string    `json:"payload,omitempty"`
	FormatVersion int       `json:"format_version"`
	Revision      int       `json:"revision"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Revision is one historical save of a process.
type Revision struct {
	ProcessID     string    `json:"process_id"`
	Revision      int       `json:"revision"`
	Payload       string    `json:"payload,omitempty"`
	FormatVersion int       `json:"format_version"`
	SizeBytes     int       `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProcessFilter narrows ListProcesses.
type ProcessFilter struct {
	Since *time.Time
	Limit int
}
