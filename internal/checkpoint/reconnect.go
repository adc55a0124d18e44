package checkpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// connectionErrorSubstrings mirrors the Python reference's
// _is_connection_error heuristic (auto_reconnect_checkpointer.py):
// libpq/driver errors that indicate the underlying connection is dead
// rather than the query itself being bad.
var connectionErrorSubstrings = []string{
	"connection is closed",
	"ssl syscall error",
	"server closed the connection",
	"eof detected",
	"connection reset",
	"bad length",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range connectionErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	var ce *ConnectionError
	return asConnectionError(err, &ce)
}

func asConnectionError(err error, target **ConnectionError) bool {
	for err != nil {
		if ce, ok := err.(*ConnectionError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Connector opens a fresh Store connection. Implementations wrap a
// concrete backend (postgres pool, sqlite file) and perform any
// idempotent schema setup on Connect.
type Connector interface {
	Connect(ctx context.Context) (Store, error)
}

// AutoReconnectStore is Layer A: it owns the live Store connection,
// recycles it once it exceeds MaxAge, retries on a connection error
// (reconnecting first; reads make up to maxRetry attempts, writes are
// retried once), and serializes writes per thread_id so
// two concurrent runs on the same thread never interleave writes to
// the same checkpoint row. Ground truth:
// original_source/backend/src/core/auto_reconnect_checkpointer.py.
type AutoReconnectStore struct {
	connector Connector
	maxAge    time.Duration
	maxRetry  int
	logger    log.Logger

	mu          sync.Mutex // guards store/connectedAt
	store       Store
	connectedAt time.Time

	writeLocksMu sync.Mutex
	writeLocks   map[string]*sync.Mutex
}

// NewAutoReconnectStore builds a Layer A wrapper. maxAge <= 0 disables
// proactive recycling (only retry-on-error reconnects then).
func NewAutoReconnectStore(connector Connector, maxAge time.Duration, maxRetry int, logger log.Logger) *AutoReconnectStore {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &AutoReconnectStore{
		connector:  connector,
		maxAge:     maxAge,
		maxRetry:   maxRetry,
		logger:     logger,
		writeLocks: make(map[string]*sync.Mutex),
	}
}

// DefaultConnectionMaxAge matches the Python reference's default of
// 210 seconds, comfortably under most managed Postgres idle-connection
// cutoffs.
const DefaultConnectionMaxAge = 210 * time.Second

// writeAttempts is the number of tries Put/PutWrites get: the first
// attempt plus one retry after a reconnect.
const writeAttempts = 2

func (a *AutoReconnectStore) ensureFresh(ctx context.Context) (Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stale := a.store == nil || (a.maxAge > 0 && time.Since(a.connectedAt) > a.maxAge)
	if !stale {
		return a.store, nil
	}
	if a.store != nil {
		a.store.Close()
	}
	s, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.connectedAt = time.Now()
	a.logger.Info("checkpoint: connection (re)established")
	return a.store, nil
}

func (a *AutoReconnectStore) reconnectLocked(ctx context.Context) (Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	s, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.connectedAt = time.Now()
	return a.store, nil
}

// withRetry runs op against a fresh store, reconnecting and retrying
// once per attempt (up to attempts) when op fails with a connection
// error, and returning any other error immediately.
func (a *AutoReconnectStore) withRetry(ctx context.Context, attempts int, op func(Store) error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		s, err := a.ensureFresh(ctx)
		if err != nil {
			return err
		}
		lastErr = op(s)
		if lastErr == nil {
			return nil
		}
		if !isConnectionError(lastErr) {
			return lastErr
		}
		a.logger.Warn("checkpoint: connection error on attempt %d, reconnecting: %v", attempt+1, lastErr)
		if _, err := a.reconnectLocked(ctx); err != nil {
			return err
		}
	}
	return lastErr
}

func (a *AutoReconnectStore) lockFor(threadID string) *sync.Mutex {
	a.writeLocksMu.Lock()
	defer a.writeLocksMu.Unlock()
	l, ok := a.writeLocks[threadID]
	if !ok {
		l = &sync.Mutex{}
		a.writeLocks[threadID] = l
	}
	return l
}

// Put writes a checkpoint, serialized per thread_id (spec invariant I2).
func (a *AutoReconnectStore) Put(ctx context.Context, cp *Checkpoint) error {
	lock := a.lockFor(cp.ThreadID)
	lock.Lock()
	defer lock.Unlock()
	return a.withRetry(ctx, writeAttempts, func(s Store) error { return s.Put(ctx, cp) })
}

// PutWrites writes pending writes for a checkpoint, same lock discipline as Put.
func (a *AutoReconnectStore) PutWrites(ctx context.Context, threadID, checkpointID string, writes []Write) error {
	lock := a.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()
	return a.withRetry(ctx, writeAttempts, func(s Store) error { return s.PutWrites(ctx, threadID, checkpointID, writes) })
}

// Get reads a checkpoint; reads never take the per-thread write lock.
func (a *AutoReconnectStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	var out *Checkpoint
	err := a.withRetry(ctx, a.maxRetry, func(s Store) error {
		cp, err := s.Get(ctx, threadID, checkpointID)
		out = cp
		return err
	})
	return out, err
}

// GetLatest reads the most recent checkpoint for a thread.
func (a *AutoReconnectStore) GetLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	var out *Checkpoint
	err := a.withRetry(ctx, a.maxRetry, func(s Store) error {
		cp, err := s.GetLatest(ctx, threadID)
		out = cp
		return err
	})
	return out, err
}

// List returns every checkpoint recorded for a thread, oldest first.
func (a *AutoReconnectStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	var out []*Checkpoint
	err := a.withRetry(ctx, a.maxRetry, func(s Store) error {
		cps, err := s.List(ctx, threadID)
		out = cps
		return err
	})
	return out, err
}

// Close releases the underlying connection.
func (a *AutoReconnectStore) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}
