package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func TestSaverRoundTrip(t *testing.T) {
	store := newFakeStore()
	saver := NewSaver(store, nil)

	turn := state.Turn{
		ThreadID: "t1",
		UserID:   "u1",
		Messages: []state.Message{{ID: "m1", Role: state.RoleUser, Text: "hi"}},
		Intent:   state.IntentTool,
		SQLResults: []state.Evidence{
			{Text: "row one", Score: 0.9, Source: state.SourceSQL},
		},
		Waiting:     1,
		FinalAnswer: "",
	}

	cp, err := saver.Save(context.Background(), "t1", "", turn, map[string]any{"source": "loop"})
	require.NoError(t, err)
	require.NotEmpty(t, cp.CheckpointID)

	got, loadedCP, err := saver.Load(context.Background(), "t1", "")
	require.NoError(t, err)
	require.NotNil(t, loadedCP)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, state.IntentTool, got.Intent)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Text)
	require.Len(t, got.SQLResults, 1)
	assert.Equal(t, "row one", got.SQLResults[0].Text)
	assert.Equal(t, 1, got.Waiting)
}

func TestSaverLoadMissingThreadReturnsNilWithoutError(t *testing.T) {
	store := newFakeStore()
	saver := NewSaver(store, nil)

	turn, cp, err := saver.Load(context.Background(), "ghost", "")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.Equal(t, state.Turn{}, turn)
}

func TestSaverMetadataTrimmingFallsBackOnFirstFailure(t *testing.T) {
	store := newFakeStore()
	store.failNextPutWith = errors.New("invalid json for metadata")
	saver := NewSaver(store, nil)

	metadata := map[string]any{
		"source": "loop",
		"writes": []string{"should not reach the row"},
	}
	cp, err := saver.Save(context.Background(), "t1", "", state.Turn{ThreadID: "t1"}, metadata)
	require.NoError(t, err)
	_, hasWrites := cp.Metadata["writes"]
	assert.False(t, hasWrites)
	assert.Equal(t, "loop", cp.Metadata["source"])
}
