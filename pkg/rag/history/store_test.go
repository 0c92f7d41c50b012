package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSqliteDB(filepath.Join(t.TempDir(), "chat_history.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, database.DriverSqlite))
	return db
}

func newTestStore(t *testing.T, opts ...Option) (*GormStore, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGormStore(unitofwork.NewRepositoryFactory(db), opts...), db
}

func TestGormStore_GetRecentTurns_ReturnsSuffixOldestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	for i := 1; i <= 7; i++ {
		_, err := store.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "bounded", limit: 5, want: []string{"q3", "q4", "q5", "q6", "q7"}},
		{name: "limit above count", limit: 50, want: []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"}},
		{name: "single", limit: 1, want: []string{"q7"}},
		{name: "zero", limit: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns, err := store.GetRecentTurns(ctx, "s1", tt.limit)
			require.NoError(t, err)

			got := make([]string, len(turns))
			for i, turn := range turns {
				got[i] = turn.UserMessage
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormStore_GetRecentTurns_UnknownSessionIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	turns, err := store.GetRecentTurns(context.Background(), "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestGormStore_SameTimestampKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(t, WithClock(func() time.Time { return frozen }))
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	for _, msg := range []string{"first", "second", "third"} {
		_, err := store.AppendTurn(ctx, "s1", msg, "ok", nil)
		require.NoError(t, err)
	}

	turns, err := store.GetRecentTurns(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[0].UserMessage)
	assert.Equal(t, "third", turns[1].UserMessage)
	assert.Less(t, turns[0].Sequence, turns[1].Sequence)
}

func TestGormStore_AppendTurn_StoresPassageCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	passages := []entity.Passage{
		{Content: "Paris is the capital of France.", SourceMetadata: map[string]any{"source": "geo.pdf"}},
	}
	committed, err := store.AppendTurn(ctx, "s1", "What is the capital of France?", "Paris.", passages)
	require.NoError(t, err)

	passages[0].Content = "mutated"
	passages[0].SourceMetadata["source"] = "mutated"

	assert.Equal(t, "Paris is the capital of France.", committed.ReferencePassages[0].Content)

	turns, err := store.GetAllTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Paris.", turns[0].Response)
	assert.Equal(t, []entity.Passage{
		{Content: "Paris is the capital of France.", SourceMetadata: map[string]any{"source": "geo.pdf"}},
	}, turns[0].ReferencePassages)
}

func TestGormStore_PassageMetadataNumbersRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	passages := []entity.Passage{
		{Content: "Negligence is a failure to take reasonable care.", SourceMetadata: map[string]any{
			"page":   int64(12),
			"offset": int64(9007199254740993),
			"score":  0.5,
		}},
	}
	_, err := store.AppendTurn(ctx, "s1", "What is negligence?", "A failure of care.", passages)
	require.NoError(t, err)

	turns, err := store.GetRecentTurns(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, passages, turns[0].ReferencePassages)
}

func TestGormStore_AppendTurn_UnknownSession(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.AppendTurn(context.Background(), "nope", "q", "a", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGormStore_ConcurrentAppendsGetDistinctSequences(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), "a", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	turns, err := store.GetAllTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 8)

	seen := map[int64]bool{}
	for _, turn := range turns {
		assert.False(t, seen[turn.Sequence])
		seen[turn.Sequence] = true
	}
}

func TestGormStore_MalformedPassagesAreRejected(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1"}))

	err := db.Exec(
		`INSERT INTO chat_turns (id, session_id, sequence, user_message, response, reference_passages, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"t-bad", "s1", 1, "q", "a", `[{'page_content': 'x'}]`, time.Now().UTC(),
	).Error
	require.NoError(t, err)

	_, err = store.GetRecentTurns(ctx, "s1", 5)
	assert.ErrorIs(t, err, ErrMalformedTurn)
}

func TestGormStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "Chat 1", CreatedAt: created}))
	require.NoError(t, store.CreateSession(ctx, "s2", SessionMetadata{Name: "Chat 2"}))

	assert.ErrorIs(t, store.CreateSession(ctx, "s1", SessionMetadata{Name: "dup"}), ErrSessionExists)

	count, err := store.CountSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "Chat 1", sessions["s1"].Name)
	assert.True(t, created.Equal(sessions["s1"].CreatedAt))
	assert.Zero(t, sessions["s1"].TurnCount)

	t.Run("turn counts", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := store.AppendTurn(ctx, "s1", "q", "a", nil)
			require.NoError(t, err)
		}

		n, err := store.CountTurns(ctx, "s1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		listed, err := store.ListSessions(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, listed["s1"].TurnCount)
		assert.Zero(t, listed["s2"].TurnCount)
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, store.RenameSession(ctx, "s1", "Trip planning"))
		sess, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Trip planning", sess.DisplayName)

		assert.ErrorIs(t, store.RenameSession(ctx, "missing", "x"), ErrSessionNotFound)
	})

	t.Run("delete removes turns", func(t *testing.T) {
		_, err := store.AppendTurn(ctx, "s2", "q", "a", nil)
		require.NoError(t, err)

		require.NoError(t, store.DeleteSession(ctx, "s2"))

		_, err = store.GetSession(ctx, "s2")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		turns, err := store.GetAllTurns(ctx, "s2")
		require.NoError(t, err)
		assert.Empty(t, turns)

		assert.ErrorIs(t, store.DeleteSession(ctx, "s2"), ErrSessionNotFound)
	})
}
