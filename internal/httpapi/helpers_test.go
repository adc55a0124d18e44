package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint"
	"github.com/xiaomayi-ant/smart-agent-go/internal/config"
	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/internal/threadstore"
)

const testJWTSecret = "test-secret"

var errBoom = errors.New("boom")

func signToken(t *testing.T, userID string) string {
	t.Helper()
	return signTokenWith(t, testJWTSecret, userID)
}

func signTokenWith(t *testing.T, secret, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testConfig() config.Config {
	return config.Config{JWTSecret: testJWTSecret, CORSOrigins: []string{"https://app.example"}}
}

func testConfigWithSecret(secret string) config.Config {
	return config.Config{JWTSecret: secret, CORSOrigins: []string{"https://app.example"}}
}

// newMockThreadStore returns a threadstore.Store backed by pgxmock, so
// handler tests can script the exact queries they expect without a
// live Postgres instance.
func newMockThreadStore(t *testing.T) (*threadstore.Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return threadstore.NewWithPool(mock), mock
}

// fakeCheckpointStore is an in-memory checkpoint.Store for tests that
// don't need durability, just Saver.Load/Save round-tripping.
type fakeCheckpointStore struct {
	byThread map[string]*checkpoint.Checkpoint
}

func newFakeCheckpointStore() *fakeCheckpointStore {
	return &fakeCheckpointStore{byThread: make(map[string]*checkpoint.Checkpoint)}
}

func (f *fakeCheckpointStore) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	f.byThread[cp.ThreadID] = cp
	return nil
}

func (f *fakeCheckpointStore) PutWrites(ctx context.Context, threadID, checkpointID string, writes []checkpoint.Write) error {
	return nil
}

func (f *fakeCheckpointStore) Get(ctx context.Context, threadID, checkpointID string) (*checkpoint.Checkpoint, error) {
	return f.byThread[threadID], nil
}

func (f *fakeCheckpointStore) GetLatest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	return f.byThread[threadID], nil
}

func (f *fakeCheckpointStore) List(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	if cp, ok := f.byThread[threadID]; ok {
		return []*checkpoint.Checkpoint{cp}, nil
	}
	return nil, nil
}

func (f *fakeCheckpointStore) Close() {}

// fakeKGExecutor is a scriptable orchestrator.KGExecutor.
type fakeKGExecutor struct {
	results []state.Evidence
	err     error
}

func (f *fakeKGExecutor) Execute(ctx context.Context, callType string, args map[string]any, userID string) ([]state.Evidence, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// echoGraph compiles a one-node Runnable that copies the last user
// message's text into FinalAnswer and streams it through the thread's
// registered streaming.Session, the minimal stand-in for the real
// multi-node graph in handler tests.
func echoGraph(t *testing.T, registry *streaming.Registry) *engine.Runnable {
	t.Helper()
	g := engine.New(nil)
	g.AddNode("echo", func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		answer := ""
		if n := len(turn.Messages); n > 0 {
			answer = turn.Messages[n-1].Text
		}
		if session, ok := registry.Lookup(turn.ThreadID); ok {
			_ = session.EmitDelta(ctx, answer)
			_ = session.Emit(ctx, streaming.Event{Type: streaming.EventComplete, Data: streaming.Complete{MessageID: "m1"}})
		}
		return state.Delta{FinalAnswer: state.Ptr(answer)}, nil
	})
	g.AddEdge("echo", engine.End)
	g.SetEntryPoint("echo")
	r, err := g.Compile()
	require.NoError(t, err)
	return r
}

// failingGraph compiles a one-node Runnable whose node always errors,
// for exercising the stream handler's error path.
func failingGraph(t *testing.T) *engine.Runnable {
	t.Helper()
	g := engine.New(nil)
	g.AddNode("boom", func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		return state.Delta{}, errBoom
	})
	g.AddEdge("boom", engine.End)
	g.SetEntryPoint("boom")
	r, err := g.Compile()
	require.NoError(t, err)
	return r
}
