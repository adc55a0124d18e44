package streaming

import (
	"context"
	"strings"
	"sync"
)

// defaultBufferSize bounds the per-thread event queue the producer
// (graph run) writes into and the consumer (HTTP handler) drains. A
// slow consumer backs up the producer rather than growing without
// bound.
const defaultBufferSize = 256

// Session is one run's event channel: nodes emit onto it from inside
// the graph, the HTTP handler ranges over Events() to flush SSE
// frames. Closing the channel is this package's sentinel -- the
// consumer's range loop simply ends, which is Go's native equivalent
// of the producer/consumer "done_sentinel" object the callback
// registry pattern uses elsewhere in the corpus.
type Session struct {
	events chan Event

	closeOnce sync.Once

	mu          sync.Mutex
	accumulated strings.Builder
}

func newSession() *Session {
	return &Session{events: make(chan Event, defaultBufferSize)}
}

// Emit enqueues ev, blocking if the queue is full until the consumer
// drains or ctx is canceled. EventComplete and EventError are terminal:
// after either is enqueued, the channel is closed so the consumer's
// range loop ends.
func (s *Session) Emit(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	if ev.Type == EventComplete || ev.Type == EventError {
		s.close()
	}
	return nil
}

// EmitDelta appends delta to the session's running transcript and
// emits an EventPartialAI carrying both the delta and the accumulated
// content, satisfying the monotonic-accumulated-content ordering
// guarantee.
func (s *Session) EmitDelta(ctx context.Context, delta string) error {
	s.mu.Lock()
	s.accumulated.WriteString(delta)
	acc := s.accumulated.String()
	s.mu.Unlock()
	return s.Emit(ctx, Event{Type: EventPartialAI, Data: PartialAI{Delta: delta, Accumulated: acc}})
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Events returns the channel the consumer ranges over. It is closed
// once a terminal event has been emitted.
func (s *Session) Events() <-chan Event { return s.events }

// Registry is the process-wide map<thread_id, Session> the streaming
// layer's callback registry keeps. Sessions are intentionally never
// placed into graph state: they hold a live in-process Go channel
// and would not survive (or deserve to survive) a checkpoint.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register creates and stores a fresh Session for threadID, replacing
// any session already registered for it (a stale session from a prior
// run that was never unregistered).
func (r *Registry) Register(threadID string) *Session {
	s := newSession()
	r.mu.Lock()
	r.sessions[threadID] = s
	r.mu.Unlock()
	return s
}

// Lookup returns the Session registered for threadID, if any. Worker
// nodes call this to find where to stream partial output; it returns
// ok=false for threads with no active run (e.g. a resumed checkpoint
// replay with no live HTTP consumer).
func (r *Registry) Lookup(threadID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[threadID]
	return s, ok
}

// Unregister removes threadID's session once its run has finished and
// the consumer has drained it.
func (r *Registry) Unregister(threadID string) {
	r.mu.Lock()
	delete(r.sessions, threadID)
	r.mu.Unlock()
}
