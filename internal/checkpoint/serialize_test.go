package checkpoint

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func TestToFromJSONableMessageList(t *testing.T) {
	msgs := []state.Message{
		{ID: "m1", Role: state.RoleUser, Text: "hi"},
		{ID: "m2", Role: state.RoleAssistant, Text: "hello"},
	}
	enc, err := ToJSONable(msgs)
	require.NoError(t, err)

	m, ok := enc.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, tagMessageList, m[typeKey])

	dec := FromJSONable(enc)
	out, ok := dec.([]state.Message)
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "hello", out[1].Text)
}

func TestToFromJSONableDatetime(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	enc, err := ToJSONable(now)
	require.NoError(t, err)
	dec := FromJSONable(enc)
	got, ok := dec.(time.Time)
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestToFromJSONableUUID(t *testing.T) {
	id := uuid.New()
	enc, err := ToJSONable(id)
	require.NoError(t, err)
	dec := FromJSONable(enc)
	got, ok := dec.(uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestToFromJSONableTuple(t *testing.T) {
	tup := Tuple{"channel", 42}
	enc, err := ToJSONable(tup)
	require.NoError(t, err)
	dec := FromJSONable(enc)
	got, ok := dec.(Tuple)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "channel", got[0])
}

func TestToFromJSONableSend(t *testing.T) {
	sv := SendValue{Node: "worker", Arg: "payload"}
	enc, err := ToJSONable(sv)
	require.NoError(t, err)
	dec := FromJSONable(enc)
	got, ok := dec.(SendValue)
	require.True(t, ok)
	assert.Equal(t, "worker", got.Node)
	assert.Equal(t, "payload", got.Arg)
}

func TestToJSONableRejectsUnsupportedFunc(t *testing.T) {
	_, err := ToJSONable(func() {})
	assert.Error(t, err)
}

func TestFromJSONablePassthroughForUntaggedMap(t *testing.T) {
	plain := map[string]any{"a": 1, "b": "x"}
	dec := FromJSONable(plain)
	got, ok := dec.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64ToAnyOrSelf(1), got["a"])
	assert.Equal(t, "x", got["b"])
}

func float64ToAnyOrSelf(v any) any { return v }
