// Package checkpoint implements the two-layer checkpointer from the
// spec: Layer A (connection lifecycle: recycling, per-thread write
// serialization, retry-on-connection-error) wraps a Store; Layer B
// (JSON-safe serialization) sits above Layer A and is what callers of
// Saver actually use.
package checkpoint

import (
	"context"
	"time"
)

// Checkpoint is one durable snapshot of a thread's graph state.
// ChannelValues holds the already-JSON-safe (Layer B encoded) field
// values; callers reconstruct typed state.Turn from it.
type Checkpoint struct {
	ThreadID       string         `json:"thread_id"`
	CheckpointID   string         `json:"checkpoint_id"`
	ParentID       string         `json:"parent_id,omitempty"`
	ChannelValues  map[string]any `json:"channel_values"`
	ChannelVersions map[string]int `json:"channel_versions"`
	VersionsSeen   map[string]int `json:"versions_seen"`
	PendingSends   []any          `json:"pending_sends,omitempty"`
	PendingWrites  []Write        `json:"pending_writes,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Write is one (channel, value) pair queued for the next checkpoint,
// mirroring LangGraph's pending_writes shape.
type Write struct {
	Channel string `json:"channel"`
	Value   any    `json:"value"`
}

// Store is the durable backend a Saver writes through. Implementations
// (postgres, sqlite) store raw (already Layer-B-encoded) checkpoints
// keyed by (thread_id, checkpoint_id).
type Store interface {
	Put(ctx context.Context, cp *Checkpoint) error
	PutWrites(ctx context.Context, threadID, checkpointID string, writes []Write) error
	Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)
	GetLatest(ctx context.Context, threadID string) (*Checkpoint, error)
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)
	Close()
}

// ConnectionError classifies a Store error as transient/retriable, the
// Go equivalent of the Python adapter's substring-based
// _is_connection_error heuristic (spec §4.2, §7).
type ConnectionError struct{ Err error }

func (e *ConnectionError) Error() string { return e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }
