//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"libroreads/contract"
	"libroreads/domain"
	"libroreads/domain/chat"
	"libroreads/domain/event"
	apperrors "libroreads/errors"
	"libroreads/moderation"
	"libroreads/projection"
	"libroreads/repositories"
)

type IChatService interface {
	Send(cmd chat.SendMessageCommand) (domain.Message, error)
	GetConversation(a, b domain.UserID) ([]domain.Message, error)
	GetInbox(userID domain.UserID) ([]domain.Message, error)
	MarkConversationRead(cmd chat.MarkReadCommand) error
	UnreadCounts(receiverID domain.UserID) (map[domain.UserID]int, error)
	TotalUnread(receiverID domain.UserID) (int, error)
}

// ChatService owns the message lifecycle: it is the only component that
// creates messages or flips their status, and the only publisher of live
// delivery events. Live publication always happens after the store
// commit, and a publish miss never fails the operation.
type ChatService struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	users     contract.IUserDirectory
	bus       contract.IDeliveryBus
	inbox     *projection.Inbox
	moderator *moderation.Moderator
	validate  *validator.Validate
}

func NewChatService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	users contract.IUserDirectory,
	bus contract.IDeliveryBus,
	moderator *moderation.Moderator,
) *ChatService {
	return &ChatService{
		log:       log,
		messages:  messages,
		users:     users,
		bus:       bus,
		inbox:     projection.NewInbox(messages),
		moderator: moderator,
		validate:  validator.New(),
	}
}

// Send validates, persists, and then pushes the new message to both
// participants plus a fresh unread snapshot to the receiver.
//
// A store failure surfaces to the caller without retry: replaying a send
// here could duplicate the message, so the resubmit decision belongs to
// the caller.
func (s *ChatService) Send(cmd chat.SendMessageCommand) (domain.Message, error) {
	if strings.TrimSpace(cmd.Content) == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if cmd.SenderID == cmd.ReceiverID {
		return domain.Message{}, apperrors.ErrSelfConversation
	}
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Message{}, err
	}
	if err := s.requireUsers(cmd.SenderID, cmd.ReceiverID); err != nil {
		return domain.Message{}, err
	}

	content := cmd.Content
	if s.moderator != nil {
		result := s.moderator.Review(content)
		if len(result.CensoredWords) > 0 {
			s.log.Info("Message content censored",
				"sender", cmd.SenderID,
				"lang", result.Lang,
				"words", len(result.CensoredWords))
		}
		content = result.Content
	}

	msg, err := s.messages.Create(cmd.SenderID, cmd.ReceiverID, content)
	if err != nil {
		return domain.Message{}, err
	}

	s.bus.Publish(event.NewMessage{To: msg.SenderID, Message: msg})
	s.bus.Publish(event.NewMessage{To: msg.ReceiverID, Message: msg})

	counts, err := s.messages.UnreadCountsBySender(msg.ReceiverID)
	if err != nil {
		// The send already committed; a failed snapshot only costs the
		// receiver a badge refresh.
		s.log.Warn("Unread snapshot skipped after send", "receiver", msg.ReceiverID, "error", err)
		return msg, nil
	}
	s.bus.Publish(event.UnreadCountsSnapshot{To: msg.ReceiverID, Counts: counts})
	return msg, nil
}

// GetConversation returns the full history between two users, oldest
// first.
func (s *ChatService) GetConversation(a, b domain.UserID) ([]domain.Message, error) {
	if err := s.requireUsers(a, b); err != nil {
		return nil, err
	}
	return s.messages.ConversationHistory(a, b)
}

// GetInbox returns one message per conversation partner, newest thread
// first.
func (s *ChatService) GetInbox(userID domain.UserID) ([]domain.Message, error) {
	if err := s.requireUsers(userID); err != nil {
		return nil, err
	}
	return s.inbox.LatestPerConversation(userID)
}

// MarkConversationRead flips every sent message from cmd.SenderID to
// cmd.ReceiverID to read and tells the sender about it. Calling it on an
// already-read conversation is a no-op, so the UI may issue it on every
// conversation view.
func (s *ChatService) MarkConversationRead(cmd chat.MarkReadCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	if err := s.requireUsers(cmd.SenderID, cmd.ReceiverID); err != nil {
		return err
	}
	if err := s.messages.MarkRead(cmd.SenderID, cmd.ReceiverID); err != nil {
		return err
	}
	s.bus.Publish(event.ReadReceipt{
		ReaderID:             cmd.ReceiverID,
		SenderOfReadMessages: cmd.SenderID,
	})
	return nil
}

func (s *ChatService) UnreadCounts(receiverID domain.UserID) (map[domain.UserID]int, error) {
	return s.messages.UnreadCountsBySender(receiverID)
}

// TotalUnread is the badge total: the sum of all per-sender counts.
func (s *ChatService) TotalUnread(receiverID domain.UserID) (int, error) {
	counts, err := s.messages.UnreadCountsBySender(receiverID)
	if err != nil {
		return 0, err
	}
	return lo.Sum(lo.Values(counts)), nil
}

func (s *ChatService) requireUsers(ids ...domain.UserID) error {
	for _, id := range ids {
		ok, err := s.users.Exists(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: user %d", apperrors.ErrUserNotFound, id)
		}
	}
	return nil
}
