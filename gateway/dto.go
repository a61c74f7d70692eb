package gateway

import (
	"strconv"
	"time"

	"github.com/samber/lo"

	"libroreads/domain"
	"libroreads/domain/event"
)

// Wire representations. Field names follow the original frontend contract
// (camelCase ids, RFC3339 timestamps).

type messageJSON struct {
	ID         uint64 `json:"id"`
	SenderID   int    `json:"senderId"`
	ReceiverID int    `json:"receiverId"`
	Content    string `json:"content"`
	SentAt     string `json:"sentAt"`
	Status     string `json:"status"`
}

type userJSON struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Theme       string `json:"theme"`
}

func toMessageJSON(msg domain.Message) messageJSON {
	return messageJSON{
		ID:         msg.ID,
		SenderID:   int(msg.SenderID),
		ReceiverID: int(msg.ReceiverID),
		Content:    msg.Content,
		SentAt:     msg.SentAt.Format(time.RFC3339Nano),
		Status:     string(msg.Status),
	}
}

func toMessagesJSON(messages []domain.Message) []messageJSON {
	return lo.Map(messages, func(msg domain.Message, _ int) messageJSON {
		return toMessageJSON(msg)
	})
}

func toUserJSON(user domain.User) userJSON {
	return userJSON{
		ID:          int(user.ID),
		Username:    user.Username,
		Email:       user.Email,
		Description: user.Description,
		ImageURL:    user.ImageURL,
		Theme:       user.Theme,
	}
}

func toUsersJSON(users []domain.User) []userJSON {
	return lo.Map(users, func(user domain.User, _ int) userJSON {
		return toUserJSON(user)
	})
}

func countsJSON(counts map[domain.UserID]int) map[string]int {
	return lo.MapEntries(counts, func(id domain.UserID, n int) (string, int) {
		return strconv.Itoa(int(id)), n
	})
}

// eventEnvelope is one frame on the live event stream.
type eventEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func toEnvelope(e event.DomainEvent) eventEnvelope {
	switch evt := e.(type) {
	case event.NewMessage:
		return eventEnvelope{Type: "newMessage", Payload: toMessageJSON(evt.Message)}
	case event.ReadReceipt:
		return eventEnvelope{Type: "readConfirmation", Payload: map[string]int{
			"readerId":             int(evt.ReaderID),
			"senderOfReadMessages": int(evt.SenderOfReadMessages),
		}}
	case event.UnreadCountsSnapshot:
		return eventEnvelope{Type: "unreadCounts", Payload: countsJSON(evt.Counts)}
	default:
		return eventEnvelope{Type: "unknown", Payload: nil}
	}
}
