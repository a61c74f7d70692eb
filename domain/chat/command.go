package chat

import (
	"libroreads/domain"
)

// SendMessageCommand is the input of the send operation.
// Validation tags are enforced by the chat service before any store call.
type SendMessageCommand struct {
	SenderID   domain.UserID `validate:"required"`
	ReceiverID domain.UserID `validate:"required,nefield=SenderID"`
	Content    string        `validate:"required"`
}

// MarkReadCommand marks every sent message from SenderID to ReceiverID as
// read. Safe to issue on every conversation view.
type MarkReadCommand struct {
	SenderID   domain.UserID `validate:"required"`
	ReceiverID domain.UserID `validate:"required"`
}
