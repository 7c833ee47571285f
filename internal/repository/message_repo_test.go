package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cambohq/marketplace-api/internal/models"
)

func TestMessageRepositoryAppendAssignsIncreasingSentAt(t *testing.T) {
	db := setupChatTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)

	var previous time.Time
	for i := 0; i < 10; i++ {
		message, err := repo.Append(context.Background(), 1, 2, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		require.True(t, message.SentAt.After(previous), "SentAt must strictly increase within a room")
		previous = message.SentAt
	}
}

func TestMessageRepositoryHistoryMatchesAppendOrder(t *testing.T) {
	db := setupChatTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)

	contents := []string{"first", "second", "third", "fourth"}
	for _, content := range contents {
		_, err := repo.Append(context.Background(), 1, 2, content)
		require.NoError(t, err)
	}

	// Another room's traffic must not leak into the history.
	_, err := repo.Append(context.Background(), 9, 2, "elsewhere")
	require.NoError(t, err)

	history, err := repo.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, len(contents))
	for i, message := range history {
		require.Equal(t, contents[i], message.Content)
	}
}

func TestMessageRepositoryRecentReturnsNewestFirst(t *testing.T) {
	db := setupChatTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)

	for i := 0; i < 5; i++ {
		_, err := repo.Append(context.Background(), 1, 2, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	recent, err := repo.Recent(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "message 4", recent[0].Content)
	require.Equal(t, "message 3", recent[1].Content)
	require.Equal(t, "message 2", recent[2].Content)

	// A limit larger than the log returns everything.
	all, err := repo.Recent(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, all, 5)

	// Non-positive limits fall back to the default.
	fallback, err := repo.Recent(context.Background(), 1, -1)
	require.NoError(t, err)
	require.Len(t, fallback, 5)
}

func TestMessageRepositoryRecentClampsOversizedLimit(t *testing.T) {
	db := setupChatTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)

	const total = 60
	for i := 0; i < total; i++ {
		_, err := repo.Append(context.Background(), 1, 2, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	// A limit above the cap is clamped to the cap, not reset to the
	// default, so a log larger than the default still comes back whole.
	recent, err := repo.Recent(context.Background(), 1, 150)
	require.NoError(t, err)
	require.Len(t, recent, total)
	require.Equal(t, fmt.Sprintf("message %d", total-1), recent[0].Content)
	require.Equal(t, "message 0", recent[total-1].Content)

	// The unspecified case keeps the default.
	fallback, err := repo.Recent(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, fallback, 50)
}

func TestMessageRepositoryConcurrentAppendsStayOrdered(t *testing.T) {
	db := setupChatTestDB(t, &models.Message{})
	repo := NewMessageRepository(db)

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := repo.Append(context.Background(), 1, uint(w+1), fmt.Sprintf("writer %d message %d", w, i)); err != nil {
					errs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	history, err := repo.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, writers*perWriter)

	seen := make(map[time.Time]struct{}, len(history))
	var previous time.Time
	for _, message := range history {
		require.True(t, message.SentAt.After(previous))
		_, duplicate := seen[message.SentAt]
		require.False(t, duplicate, "timestamps must be unique within a room")
		seen[message.SentAt] = struct{}{}
		previous = message.SentAt
	}
}
