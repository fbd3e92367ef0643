// Package streaming fans process change events out to live subscribers.
package streaming

import "context"

// Event types.
const (
	EventProcessSaved    = "process.saved"
	EventRevisionsPruned = "revisions.pruned"
)

// Event reports a change to a stored process.
type Event struct {
	Type      string `json:"type"`
	ProcessID string `json:"process_id,omitempty"`
	Revision  int    `json:"revision,omitempty"`
	Count     int    `json:"count,omitempty"`
	Source    string `json:"source,omitempty"` // http, mcp, cli or scheduler
}

// Filter selects events. Zero values match everything.
type Filter struct {
	ProcessID string
	Types     []string
}

// Hub is a publish/subscribe channel for process events.
type Hub interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, f Filter) (<-chan Event, func(), error)
}
