package event

import (
	"libroreads/domain"
)

// DomainEvent is anything the delivery bus can push to a user's live
// sessions. AddressedTo names the single user whose channel receives it.
type DomainEvent interface {
	AddressedTo() domain.UserID
}

// NewMessage notifies a participant that a message was persisted.
// It goes to both the sender (UI confirmation) and the receiver (delivery).
type NewMessage struct {
	To      domain.UserID
	Message domain.Message
}

func (e NewMessage) AddressedTo() domain.UserID {
	return e.To
}

// ReadReceipt tells the original sender that the reader has marked the
// conversation as read, so delivery ticks can update.
type ReadReceipt struct {
	ReaderID             domain.UserID
	SenderOfReadMessages domain.UserID
}

func (e ReadReceipt) AddressedTo() domain.UserID {
	return e.SenderOfReadMessages
}

// UnreadCountsSnapshot carries a receiver's fresh per-sender unread map.
type UnreadCountsSnapshot struct {
	To     domain.UserID
	Counts map[domain.UserID]int
}

func (e UnreadCountsSnapshot) AddressedTo() domain.UserID {
	return e.To
}
