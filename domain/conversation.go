package domain

import (
	"fmt"

	apperrors "libroreads/errors"
)

// ConversationKey identifies the thread between two users regardless of
// who sent which message: Low always holds the smaller user id.
type ConversationKey struct {
	Low  UserID
	High UserID
}

// NewConversationKey derives the canonical key for a pair of users.
// It is the single source of truth for "same conversation" grouping;
// both the lifecycle engine and the inbox projection rely on it.
func NewConversationKey(a, b UserID) (ConversationKey, error) {
	if a == b {
		return ConversationKey{}, apperrors.ErrSelfConversation
	}
	if a < b {
		return ConversationKey{Low: a, High: b}, nil
	}
	return ConversationKey{Low: b, High: a}, nil
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%d_%d", k.Low, k.High)
}
