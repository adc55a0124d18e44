// Package sqlite is a mattn/go-sqlite3-backed checkpoint.Store, the
// non-durable dev-mode backend selected with CHECKPOINT_BACKEND=sqlite. Grounded on
// store/sqlite/sqlite.go, extended to the richer per-thread,
// per-checkpoint-id schema checkpoint.Checkpoint needs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint"
)

// Store implements checkpoint.Store over a local SQLite file.
type Store struct {
	db        *sql.DB
	tableName string
}

// Options configures a new Store/Connector.
type Options struct {
	Path      string
	TableName string // default "checkpoints"
}

// NewStore opens (creating if needed) the SQLite file and ensures the schema exists.
func NewStore(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", opts.Path, err)
	}
	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}
	s := &Store{db: db, tableName: tableName}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Connector opens a fresh sqlite handle on Connect, implementing
// checkpoint.Connector so the dev fallback can still sit under
// AutoReconnectStore for a uniform call path.
type Connector struct {
	Options Options
}

func NewConnector(opts Options) *Connector { return &Connector{Options: opts} }

func (c *Connector) Connect(ctx context.Context) (checkpoint.Store, error) {
	return NewStore(c.Options)
}

// InitSchema creates the checkpoints table if it doesn't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id        TEXT NOT NULL,
			checkpoint_id    TEXT NOT NULL,
			parent_id        TEXT,
			channel_values   TEXT NOT NULL,
			channel_versions TEXT,
			versions_seen    TEXT,
			pending_sends    TEXT,
			pending_writes   TEXT,
			metadata         TEXT,
			created_at       DATETIME NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_created ON %s (thread_id, created_at DESC);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.db.Close() }

// Put inserts or replaces a checkpoint row.
func (s *Store) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	channelValues, err := json.Marshal(cp.ChannelValues)
	if err != nil {
		return fmt.Errorf("sqlite: marshal channel_values: %w", err)
	}
	channelVersions, err := json.Marshal(cp.ChannelVersions)
	if err != nil {
		return fmt.Errorf("sqlite: marshal channel_versions: %w", err)
	}
	versionsSeen, err := json.Marshal(cp.VersionsSeen)
	if err != nil {
		return fmt.Errorf("sqlite: marshal versions_seen: %w", err)
	}
	pendingSends, err := json.Marshal(cp.PendingSends)
	if err != nil {
		return fmt.Errorf("sqlite: marshal pending_sends: %w", err)
	}
	pendingWrites, err := json.Marshal(cp.PendingWrites)
	if err != nil {
		return fmt.Errorf("sqlite: marshal pending_writes: %w", err)
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, checkpoint_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			channel_values = excluded.channel_values,
			channel_versions = excluded.channel_versions,
			versions_seen = excluded.versions_seen,
			pending_sends = excluded.pending_sends,
			pending_writes = excluded.pending_writes,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		cp.ThreadID, cp.CheckpointID, nullIfEmpty(cp.ParentID),
		string(channelValues), string(channelVersions), string(versionsSeen),
		string(pendingSends), string(pendingWrites), string(metadata), cp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put checkpoint: %w", err)
	}
	return nil
}

// PutWrites appends to pending_writes for an existing checkpoint.
func (s *Store) PutWrites(ctx context.Context, threadID, checkpointID string, writes []checkpoint.Write) error {
	existing, err := s.Get(ctx, threadID, checkpointID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("sqlite: put writes: checkpoint %s/%s not found", threadID, checkpointID)
	}
	existing.PendingWrites = append(existing.PendingWrites, writes...)
	return s.Put(ctx, existing)
}

// Get loads one checkpoint by thread_id + checkpoint_id.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = ? AND checkpoint_id = ?
	`, s.tableName)
	row := s.db.QueryRowContext(ctx, query, threadID, checkpointID)
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// GetLatest loads the most recently created checkpoint for a thread.
func (s *Store) GetLatest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1
	`, s.tableName)
	row := s.db.QueryRowContext(ctx, query, threadID)
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// List returns every checkpoint for a thread, oldest first.
func (s *Store) List(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = ? ORDER BY created_at ASC
	`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate checkpoint rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var parentID sql.NullString
	var channelValues, channelVersions, versionsSeen, pendingSends, pendingWrites, metadata string

	err := row.Scan(
		&cp.ThreadID, &cp.CheckpointID, &parentID,
		&channelValues, &channelVersions, &versionsSeen, &pendingSends, &pendingWrites, &metadata,
		&cp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		cp.ParentID = parentID.String
	}
	if err := unmarshalIfPresent(channelValues, &cp.ChannelValues); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(channelVersions, &cp.ChannelVersions); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(versionsSeen, &cp.VersionsSeen); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(pendingSends, &cp.PendingSends); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(pendingWrites, &cp.PendingWrites); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(metadata, &cp.Metadata); err != nil {
		return nil, err
	}
	return &cp, nil
}

func unmarshalIfPresent(raw string, target any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("sqlite: unmarshal: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
