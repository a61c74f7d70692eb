package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"libroreads/domain"
	apperrors "libroreads/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	// Deterministic, strictly increasing timestamps.
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	return repo
}

func Test_Create_Assigns_Ids_And_Sent_Status(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	first, err := repo.Create(1, 2, "have you finished chapter 3?")
	req.NoError(err)
	second, err := repo.Create(2, 1, "just did, that twist!")
	req.NoError(err)

	req.Equal(domain.StatusSent, first.Status)
	req.Equal(domain.StatusSent, second.Status)
	req.NotZero(first.ID)
	req.Greater(second.ID, first.ID)
	req.True(second.SentAt.After(first.SentAt))
}

func Test_Create_Rejects_Self_Conversation(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	_, err := repo.Create(7, 7, "note to self")
	req.ErrorIs(err, apperrors.ErrSelfConversation)
}

func Test_ConversationHistory_Sorted_And_Order_Independent(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	// Interleaved directions within the same conversation.
	contents := []struct {
		from, to domain.UserID
		text     string
	}{
		{1, 2, "started the new Le Guin"},
		{2, 1, "which one?"},
		{1, 2, "The Dispossessed"},
		{2, 1, "oh you're in for a ride"},
	}
	for _, c := range contents {
		_, err := repo.Create(c.from, c.to, c.text)
		req.NoError(err)
	}
	// Noise in another conversation must not leak in.
	_, err := repo.Create(1, 3, "unrelated chatter")
	req.NoError(err)

	history, err := repo.ConversationHistory(1, 2)
	req.NoError(err)
	req.Len(history, 4)
	for i, c := range contents {
		req.Equal(c.text, history[i].Content)
		req.Equal(c.from, history[i].SenderID)
	}

	// Same conversation regardless of argument order.
	reversed, err := repo.ConversationHistory(2, 1)
	req.NoError(err)
	req.Equal(history, reversed)
}

func Test_MarkRead_Flips_Status_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	_, err := repo.Create(1, 2, "ping")
	req.NoError(err)
	_, err = repo.Create(1, 2, "ping again")
	req.NoError(err)
	// Message flowing the other way must stay untouched.
	_, err = repo.Create(2, 1, "pong")
	req.NoError(err)

	req.NoError(repo.MarkRead(1, 2))

	history, err := repo.ConversationHistory(1, 2)
	req.NoError(err)
	req.Len(history, 3)
	for _, msg := range history {
		if msg.SenderID == 1 {
			req.Equal(domain.StatusRead, msg.Status)
		} else {
			req.Equal(domain.StatusSent, msg.Status)
		}
	}

	// Replaying is a no-op, not an error.
	req.NoError(repo.MarkRead(1, 2))
	req.NoError(repo.MarkRead(5, 2))
}

func Test_UnreadCounts_Grouped_By_Sender(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(1, 2, fmt.Sprintf("from alice %d", i))
		req.NoError(err)
	}
	_, err := repo.Create(3, 2, "from clara")
	req.NoError(err)
	// Messages sent BY the receiver never count.
	_, err = repo.Create(2, 1, "reply")
	req.NoError(err)

	counts, err := repo.UnreadCountsBySender(2)
	req.NoError(err)
	req.Equal(map[domain.UserID]int{1: 3, 3: 1}, counts)

	req.NoError(repo.MarkRead(1, 2))

	counts, err = repo.UnreadCountsBySender(2)
	req.NoError(err)
	req.Equal(map[domain.UserID]int{3: 1}, counts)

	// A user with nothing unread gets an empty map.
	counts, err = repo.UnreadCountsBySender(99)
	req.NoError(err)
	req.Empty(counts)
}

func Test_RecentMessagesInvolving_Newest_First(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	_, err := repo.Create(1, 2, "a")
	req.NoError(err)
	_, err = repo.Create(2, 1, "b")
	req.NoError(err)
	_, err = repo.Create(1, 3, "c")
	req.NoError(err)
	// User 1 is not involved here.
	_, err = repo.Create(2, 3, "d")
	req.NoError(err)

	recent, err := repo.RecentMessagesInvolving(1)
	req.NoError(err)
	req.Len(recent, 3)
	req.Equal("c", recent[0].Content)
	req.Equal("b", recent[1].Content)
	req.Equal("a", recent[2].Content)
}

func Test_RecentMessagesInvolving_Honours_Limit(t *testing.T) {
	req := require.New(t)
	limit := 2
	repo, err := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	req.NoError(err)
	t.Cleanup(func() { _ = repo.Close() })

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time {
		at = at.Add(time.Second)
		return at
	}

	for i := 0; i < 5; i++ {
		_, err := repo.Create(1, 2, fmt.Sprintf("msg %d", i))
		req.NoError(err)
	}

	recent, err := repo.RecentMessagesInvolving(1)
	req.NoError(err)
	req.Len(recent, limit)
	req.Equal("msg 4", recent[0].Content)
	req.Equal("msg 3", recent[1].Content)
}
