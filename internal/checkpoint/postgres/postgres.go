// Package postgres is a pgx/v5-backed checkpoint.Store, the durable
// backend wired under checkpoint.AutoReconnectStore in production.
// Grounded on store/postgres/postgres.go's DBPool interface and
// CRUD shape, extended to the checkpoint package's richer per-thread,
// per-checkpoint-id schema.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint"
)

// DBPool is the subset of *pgxpool.Pool this package needs, kept as
// an interface so tests can swap in pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements checkpoint.Store over a Postgres table.
type Store struct {
	pool      DBPool
	tableName string
}

// Options configures a new Store/Connector.
type Options struct {
	ConnString string
	TableName  string // default "checkpoints"
}

// NewStoreWithPool wraps an already-open pool, useful for tests with pgxmock.
func NewStoreWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &Store{pool: pool, tableName: tableName}
}

// Connector opens a fresh pgxpool on Connect and runs schema setup,
// implementing checkpoint.Connector for use with AutoReconnectStore.
type Connector struct {
	Options Options
}

func NewConnector(opts Options) *Connector { return &Connector{Options: opts} }

func (c *Connector) Connect(ctx context.Context) (checkpoint.Store, error) {
	pool, err := pgxpool.New(ctx, c.Options.ConnString)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := NewStoreWithPool(pool, c.Options.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the checkpoints table if it doesn't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			thread_id        TEXT NOT NULL,
			checkpoint_id    TEXT NOT NULL,
			parent_id        TEXT,
			channel_values   JSONB NOT NULL,
			channel_versions JSONB,
			versions_seen    JSONB,
			pending_sends    JSONB,
			pending_writes   JSONB,
			metadata         JSONB,
			created_at       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread_created ON %s (thread_id, created_at DESC);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

// Put inserts or replaces a checkpoint row.
func (s *Store) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	channelValues, err := json.Marshal(cp.ChannelValues)
	if err != nil {
		return fmt.Errorf("postgres: marshal channel_values: %w", err)
	}
	channelVersions, err := json.Marshal(cp.ChannelVersions)
	if err != nil {
		return fmt.Errorf("postgres: marshal channel_versions: %w", err)
	}
	versionsSeen, err := json.Marshal(cp.VersionsSeen)
	if err != nil {
		return fmt.Errorf("postgres: marshal versions_seen: %w", err)
	}
	pendingSends, err := json.Marshal(cp.PendingSends)
	if err != nil {
		return fmt.Errorf("postgres: marshal pending_sends: %w", err)
	}
	pendingWrites, err := json.Marshal(cp.PendingWrites)
	if err != nil {
		return fmt.Errorf("postgres: marshal pending_writes: %w", err)
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (thread_id, checkpoint_id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			channel_values = EXCLUDED.channel_values,
			channel_versions = EXCLUDED.channel_versions,
			versions_seen = EXCLUDED.versions_seen,
			pending_sends = EXCLUDED.pending_sends,
			pending_writes = EXCLUDED.pending_writes,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		cp.ThreadID, cp.CheckpointID, nullIfEmpty(cp.ParentID),
		channelValues, channelVersions, versionsSeen, pendingSends, pendingWrites, metadata, cp.CreatedAt,
	)
	if err != nil {
		return &checkpoint.ConnectionError{Err: fmt.Errorf("postgres: put checkpoint: %w", err)}
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
		return fmt.Errorf("postgres: put writes: checkpoint %s/%s not found", threadID, checkpointID)
	}
	existing.PendingWrites = append(existing.PendingWrites, writes...)
	return s.Put(ctx, existing)
}

// Get loads one checkpoint by thread_id + checkpoint_id.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = $1 AND checkpoint_id = $2
	`, s.tableName)
	row := s.pool.QueryRow(ctx, query, threadID, checkpointID)
	cp, err := scanCheckpoint(row)
	if err != nil && err == pgx.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// GetLatest loads the most recently created checkpoint for a thread.
func (s *Store) GetLatest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = $1 ORDER BY created_at DESC LIMIT 1
	`, s.tableName)
	row := s.pool.QueryRow(ctx, query, threadID)
	cp, err := scanCheckpoint(row)
	if err != nil && err == pgx.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// List returns every checkpoint for a thread, oldest first.
func (s *Store) List(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT thread_id, checkpoint_id, parent_id, channel_values, channel_versions,
			versions_seen, pending_sends, pending_writes, metadata, created_at
		FROM %s WHERE thread_id = $1 ORDER BY created_at ASC
	`, s.tableName)
	rows, err := s.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, &checkpoint.ConnectionError{Err: fmt.Errorf("postgres: list checkpoints: %w", err)}
	}
	defer rows.Close()

	var out []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpointRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate checkpoint rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*checkpoint.Checkpoint, error) {
	return scanCheckpointRow(row)
}

func scanCheckpointRow(row scanner) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var parentID *string
	var channelValues, channelVersions, versionsSeen, pendingSends, pendingWrites, metadata []byte

	err := row.Scan(
		&cp.ThreadID, &cp.CheckpointID, &parentID,
		&channelValues, &channelVersions, &versionsSeen, &pendingSends, &pendingWrites, &metadata,
		&cp.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, &checkpoint.ConnectionError{Err: fmt.Errorf("postgres: scan checkpoint: %w", err)}
	}
	if parentID != nil {
		cp.ParentID = *parentID
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

func unmarshalIfPresent(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("postgres: unmarshal: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
