// Package domain contains core concepts of the book reader network.
// This file defines Message entities and their lifecycle rules.
// Messages are immutable except for their read status.
package domain

import (
	"time"
)

type UserID int

// Status is the delivery state of a message.
// The only legal transition is StatusSent -> StatusRead.
type Status string

const (
	StatusSent Status = "sent"
	StatusRead Status = "read"
)

// Message represents one direct message between two users.
// ID and SentAt are assigned by the store at creation and never change.
type Message struct {
	ID         uint64
	SenderID   UserID
	ReceiverID UserID
	Content    string
	SentAt     time.Time
	Status     Status
}

// Key returns the conversation this message belongs to.
// Sender and receiver always differ, so the derivation cannot fail.
func (m Message) Key() ConversationKey {
	key, _ := NewConversationKey(m.SenderID, m.ReceiverID)
	return key
}
