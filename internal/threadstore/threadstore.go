// Package threadstore is a pgx/v5-backed store for threads and their
// messages, the Go counterpart of threads_pg.py. It is intentionally
// small and framework-agnostic: httpapi calls these functions at the
// natural request hooks without needing to know about SQL.
package threadstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a thread doesn't exist, or exists but
// belongs to a different user -- owner mismatch is indistinguishable
// from not-found (spec invariant I1).
var ErrNotFound = errors.New("threadstore: thread not found")

// DBPool is the subset of *pgxpool.Pool this package needs.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists threads and their messages in Postgres.
type Store struct {
	pool DBPool
}

// New opens a pool against dsn, normalized for pgx the same way the
// reference implementation normalizes it for asyncpg, and verifies the
// expected schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("threadstore: PG_DSN is not configured")
	}
	pool, err := pgxpool.New(ctx, NormalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("threadstore: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.verifySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an already-open pool, useful for tests with pgxmock.
func NewWithPool(pool DBPool) *Store { return &Store{pool: pool} }

// NormalizeDSN rewrites the psycopg-style scheme to the plain
// postgresql:// one pgx expects and drops libpq-only keepalive params
// neither pgx nor the server understands, mirroring
// _normalize_dsn_for_asyncpg. Any other query params (sslmode,
// application_name, ...) pass through untouched.
func NormalizeDSN(dsn string) string {
	const oldScheme = "postgresql+psycopg://"
	if strings.HasPrefix(dsn, oldScheme) {
		dsn = "postgresql://" + dsn[len(oldScheme):]
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.RawQuery == "" {
		return dsn
	}
	skip := map[string]bool{
		"keepalives":          true,
		"keepalives_idle":     true,
		"keepalives_interval": true,
		"keepalives_count":    true,
	}
	q := u.Query()
	filtered := url.Values{}
	for k, vs := range q {
		if skip[k] {
			continue
		}
		for _, v := range vs {
			filtered.Add(k, v)
		}
	}
	u.RawQuery = filtered.Encode()
	return u.String()
}

func (s *Store) verifySchema(ctx context.Context) error {
	var threadsExists, messagesExists *string
	err := s.pool.QueryRow(ctx, `
		select to_regclass('public.threads')::text as threads_exists,
		       to_regclass('public.thread_messages')::text as thread_messages_exists
	`).Scan(&threadsExists, &messagesExists)
	if err != nil {
		return fmt.Errorf("threadstore: verify schema: %w", err)
	}
	if threadsExists == nil || messagesExists == nil {
		return errors.New("threadstore: database schema missing required tables (threads, thread_messages)")
	}
	return nil
}

// Message is one persisted row of thread_messages.
type Message struct {
	ID        int64
	Role      string
	Content   map[string]any
	CreatedAt time.Time
}

// EnsureThread creates the thread row if absent, or touches updated_at
// and backfills user_id if it was previously unset.
func (s *Store) EnsureThread(ctx context.Context, threadID, userID string) error {
	if userID != "" {
		if err := s.setUserContext(ctx, userID); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
		insert into threads(id, user_id) values($1, $2)
		on conflict (id) do update set updated_at = now(), user_id = coalesce(threads.user_id, excluded.user_id)
	`, threadID, nullIfEmpty(userID))
	if err != nil {
		return fmt.Errorf("threadstore: ensure thread: %w", err)
	}
	return nil
}

// InsertMessage ensures the thread exists, appends one message, and
// bumps the thread's updated_at, all inside one transaction.
func (s *Store) InsertMessage(ctx context.Context, threadID, role string, content map[string]any, userID string) error {
	if userID != "" {
		if err := s.setUserContext(ctx, userID); err != nil {
			return err
		}
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("threadstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		insert into threads(id, user_id) values($1, $2)
		on conflict (id) do update set updated_at = now(), user_id = coalesce(threads.user_id, excluded.user_id)
	`, threadID, nullIfEmpty(userID)); err != nil {
		return fmt.Errorf("threadstore: ensure thread: %w", err)
	}

	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("threadstore: marshal message content: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		insert into thread_messages(thread_id, role, content, user_id) values($1, $2, $3::jsonb, $4)
	`, threadID, role, payload, nullIfEmpty(userID)); err != nil {
		return fmt.Errorf("threadstore: insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		update threads set updated_at = now() where id = $1 and user_id is not distinct from $2
	`, threadID, nullIfEmpty(userID)); err != nil {
		return fmt.Errorf("threadstore: touch thread: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("threadstore: commit tx: %w", err)
	}
	return nil
}

// LoadMessages returns every message for threadID owned by userID,
// oldest first. A thread owned by a different user reads as empty,
// same as "doesn't exist" -- ownership is enforced by the join, not a
// separate check.
func (s *Store) LoadMessages(ctx context.Context, threadID, userID string) ([]Message, error) {
	if userID != "" {
		if err := s.setUserContext(ctx, userID); err != nil {
			return nil, err
		}
	}
	rows, err := s.pool.Query(ctx, `
		select tm.id, tm.role, tm.content, tm.created_at
		from thread_messages tm
		join threads t on t.id = tm.thread_id
		where tm.thread_id = $1 and t.user_id is not distinct from $2
		order by tm.created_at asc, tm.id asc
	`, threadID, nullIfEmpty(userID))
	if err != nil {
		return nil, fmt.Errorf("threadstore: load messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var content []byte
		if err := rows.Scan(&m.ID, &m.Role, &content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("threadstore: scan message row: %w", err)
		}
		if len(content) > 0 {
			if err := json.Unmarshal(content, &m.Content); err != nil {
				return nil, fmt.Errorf("threadstore: unmarshal message content: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("threadstore: iterate message rows: %w", err)
	}
	return out, nil
}

// DeleteThread removes threadID, scoped to userID so a caller can
// never delete another user's thread.
func (s *Store) DeleteThread(ctx context.Context, threadID, userID string) error {
	if userID != "" {
		if err := s.setUserContext(ctx, userID); err != nil {
			return err
		}
	}
	tag, err := s.pool.Exec(ctx, `delete from threads where id = $1 and user_id is not distinct from $2`, threadID, nullIfEmpty(userID))
	if err != nil {
		return fmt.Errorf("threadstore: delete thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchThread bumps updated_at without writing a message, used on
// stream-open/resume so idle-thread GC sees recent activity.
func (s *Store) TouchThread(ctx context.Context, threadID, userID string) error {
	if userID != "" {
		if err := s.setUserContext(ctx, userID); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `update threads set updated_at = now() where id = $1 and user_id is not distinct from $2`, threadID, nullIfEmpty(userID))
	if err != nil {
		return fmt.Errorf("threadstore: touch thread: %w", err)
	}
	return nil
}

// GetThreadOwner returns the user_id recorded for threadID, or
// ErrNotFound if the thread doesn't exist. The returned owner may
// itself be empty (anonymous thread).
func (s *Store) GetThreadOwner(ctx context.Context, threadID string) (string, error) {
	var owner *string
	err := s.pool.QueryRow(ctx, `select user_id from threads where id = $1`, threadID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("threadstore: get thread owner: %w", err)
	}
	if owner == nil {
		return "", nil
	}
	return *owner, nil
}

// setUserContext sets the app.user_id session variable row-level
// security policies key off of, mirroring the reference's
// set_config('app.user_id', ..., true) call.
func (s *Store) setUserContext(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `select set_config('app.user_id', $1, true)`, userID)
	if err != nil {
		return fmt.Errorf("threadstore: set user context: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
