// Package projection derives read-side views from the message history.
// Handles grouping and recency ranking. Does not emit events or touch
// storage directly.
package projection

import (
	"libroreads/domain"
	"libroreads/repositories"
)

// Inbox builds the "latest chat per conversation" view for a user.
type Inbox struct {
	messages repositories.IMessageRepository
}

func NewInbox(messages repositories.IMessageRepository) *Inbox {
	return &Inbox{messages: messages}
}

// LatestPerConversation returns one message per distinct conversation
// partner of userID, each being the newest message in that thread,
// ordered most-recent-first.
func (i *Inbox) LatestPerConversation(userID domain.UserID) ([]domain.Message, error) {
	recent, err := i.messages.RecentMessagesInvolving(userID)
	if err != nil {
		return nil, err
	}
	return collapse(recent), nil
}

// collapse expects messages newest-first and keeps the first message seen
// per conversation key. A single pass with a seen-set is equivalent to
// partitioning by conversation and ranking by recency.
func collapse(recent []domain.Message) []domain.Message {
	seen := make(map[domain.ConversationKey]struct{}, len(recent))
	var latest []domain.Message
	for _, msg := range recent {
		key := msg.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		latest = append(latest, msg)
	}
	return latest
}
