package history

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/db"
	"github.com/ziadkadry99/funcall/internal/llm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestRecordAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	conv := []llm.Message{
		{Role: llm.RoleUser, Content: "What is the weather like in Boston?"},
		{Role: llm.RoleAssistant, FunctionCall: &llm.FunctionCall{Name: "get_current_weather", Arguments: `{"location":"Boston, MA"}`}},
		{Role: llm.RoleFunction, Name: "get_current_weather", Content: `{"temperature":"72"}`},
		{Role: llm.RoleAssistant, Content: "72 degrees."},
	}
	id, err := store.Record(ctx, Run{
		StartedAt:     started,
		Duration:      1500 * time.Millisecond,
		Backend:       "openai",
		Model:         "gpt-3.5-turbo",
		Input:         "What is the weather like in Boston?",
		Answer:        "72 degrees.",
		Requests:      2,
		FunctionCalls: 1,
		InputTokens:   120,
		OutputTokens:  30,
		Conversation:  conv,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.Equal(t, StatusDone, run.Status)
	assert.Equal(t, "72 degrees.", run.Answer)
	assert.Equal(t, 2, run.Requests)
	assert.Equal(t, 1, run.FunctionCalls)
	assert.Equal(t, conv, run.Conversation)
}

func TestRecordFailedRun(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, Run{Input: "q", Error: "max turns exceeded"})
	require.NoError(t, err)

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Empty(t, run.Conversation)
	assert.False(t, run.StartedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	store := setupStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, input := range []string{"first", "second", "third"} {
		_, err := store.Record(ctx, Run{
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			Input:        input,
			Conversation: []llm.Message{{Role: llm.RoleUser, Content: input}},
		})
		require.NoError(t, err)
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].Input)
	assert.Equal(t, "first", runs[2].Input)
	assert.Nil(t, runs[0].Conversation, "List omits conversations")

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListEmpty(t *testing.T) {
	runs, err := setupStore(t).List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRun(t *testing.T) {
	started := time.Now().Add(-time.Second)
	res := &conversation.Result{
		Answer:       "hi",
		Model:        "gpt-4o-mini",
		Turns:        2,
		Requests:     3,
		InputTokens:  10,
		OutputTokens: 4,
		Conversation: []llm.Message{{Role: llm.RoleUser, Content: "q"}},
	}

	run := NewRun(started, "openai", "q", res, nil)
	assert.Equal(t, StatusDone, run.Status)
	assert.Equal(t, "gpt-4o-mini", run.Model)
	assert.Equal(t, 2, run.FunctionCalls)
	assert.Equal(t, 3, run.Requests)
	assert.GreaterOrEqual(t, run.Duration, time.Second)

	failed := NewRun(started, "openai", "q", nil, errors.New("boom"))
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
}
