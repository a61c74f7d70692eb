//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"libroreads/domain"
)

// markReadAttempts bounds the retry loop on transaction conflicts.
// MarkRead is idempotent, so replaying it is always safe; Create is never
// retried because a replay could duplicate a message.
const markReadAttempts = 3

type IMessageRepository interface {
	Create(senderID, receiverID domain.UserID, content string) (domain.Message, error)
	ConversationHistory(a, b domain.UserID) ([]domain.Message, error)
	MarkRead(senderID, receiverID domain.UserID) error
	UnreadCountsBySender(receiverID domain.UserID) (map[domain.UserID]int, error)
	RecentMessagesInvolving(userID domain.UserID) ([]domain.Message, error)
	Close() error
}

// MessageRepository persists direct messages in BadgerDB.
//
// Three key families keep every query a single prefix scan:
//
//	msg:{low}:{high}:{sentAt_padded}:{id_padded}  -> message record
//	user-msg:{user}:{sentAt_padded}:{id_padded}   -> primary key (one per participant)
//	unread:{receiver}:{sender}:{id_padded}        -> primary key
//
// The 19-digit zero padding makes lexicographic order equal to
// (sentAt, id) order, so conversation history needs no sorting. The id
// component disambiguates messages persisted in the same nanosecond.
type MessageRepository struct {
	db    *badger.DB
	seq   *badger.Sequence
	log   *slog.Logger
	limit *int
	clock func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limit *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 100)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, limit: limit, clock: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases unused ids back to the sequence.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type messageRecord struct {
	ID         uint64        `json:"id"`
	SenderID   domain.UserID `json:"sender_id"`
	ReceiverID domain.UserID `json:"receiver_id"`
	Content    string        `json:"content"`
	SentAt     int64         `json:"sent_at"`
	Status     string        `json:"status"`
}

// Create persists a new message with status "sent" in one transaction:
// primary record, both per-user index entries, and the unread index entry
// all commit together or not at all.
func (m *MessageRepository) Create(senderID, receiverID domain.UserID, content string) (domain.Message, error) {
	key, err := domain.NewConversationKey(senderID, receiverID)
	if err != nil {
		return domain.Message{}, err
	}

	id, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	// Sequences start at 0; ids are 1-based like the original schema.
	id++

	msg := domain.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     m.clock(),
		Status:     domain.StatusSent,
	}

	data, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}

	primary := primaryKey(key, msg.SentAt, msg.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		if err := txn.Set(userKey(senderID, msg.SentAt, msg.ID), primary); err != nil {
			return err
		}
		if err := txn.Set(userKey(receiverID, msg.SentAt, msg.ID), primary); err != nil {
			return err
		}
		return txn.Set(unreadKey(receiverID, senderID, msg.ID), primary)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist message: %w", err)
	}
	return msg, nil
}

// ConversationHistory returns every message between a and b, oldest
// first. The padded primary keys make the prefix scan come back already
// ordered by (sentAt, id).
func (m *MessageRepository) ConversationHistory(a, b domain.UserID) ([]domain.Message, error) {
	key, err := domain.NewConversationKey(a, b)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	err = m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%d:%d:", key.Low, key.High))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				msg, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips every "sent" message from senderID to receiverID to
// "read" in a single transaction and clears the matching unread index
// entries. Calling it when nothing is unread is a no-op.
//
// Badger transactions are serializable, so a concurrent Create in the
// same conversation can abort the update with ErrConflict; since the
// operation is idempotent it is simply replayed a bounded number of times.
func (m *MessageRepository) MarkRead(senderID, receiverID domain.UserID) error {
	var err error
	for attempt := 0; attempt < markReadAttempts; attempt++ {
		err = m.db.Update(func(txn *badger.Txn) error {
			return markReadTxn(txn, senderID, receiverID)
		})
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		m.log.Debug("mark-read conflicted with a concurrent write, retrying",
			"sender", senderID, "receiver", receiverID, "attempt", attempt+1)
	}
	return err
}

func markReadTxn(txn *badger.Txn, senderID, receiverID domain.UserID) error {
	prefix := []byte(fmt.Sprintf("unread:%d:%d:", receiverID, senderID))
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var primaries [][]byte
	var indexKeys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		indexKeys = append(indexKeys, item.KeyCopy(nil))
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		primaries = append(primaries, primary)
	}
	// Iterator must be closed before the transaction writes.
	it.Close()

	for i, primary := range primaries {
		item, err := txn.Get(primary)
		if err != nil {
			return err
		}
		var rec messageRecord
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return err
		}
		rec.Status = string(domain.StatusRead)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		if err := txn.Delete(indexKeys[i]); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCountsBySender counts "sent" messages addressed to receiverID,
// grouped by sender. Senders with nothing unread do not appear.
func (m *MessageRepository) UnreadCountsBySender(receiverID domain.UserID) (map[domain.UserID]int, error) {
	counts := make(map[domain.UserID]int)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("unread:%d:", receiverID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			senderID, err := senderFromUnreadKey(string(it.Item().Key()))
			if err != nil {
				return err
			}
			counts[senderID]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// RecentMessagesInvolving returns every message where userID is sender or
// receiver, newest first. This is the raw feed of the inbox projection.
func (m *MessageRepository) RecentMessagesInvolving(userID domain.UserID) ([]domain.Message, error) {
	var primaries [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("user-msg:%d:", userID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limit != nil && len(primaries) == *m.limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limit))
				break
			}
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			primaries = append(primaries, primary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	err = m.db.View(func(txn *badger.Txn) error {
		for _, primary := range primaries {
			item, err := txn.Get(primary)
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				msg, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func primaryKey(key domain.ConversationKey, at time.Time, id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%d:%019d:%019d", key.Low, key.High, at.UnixNano(), id))
}

func userKey(userID domain.UserID, at time.Time, id uint64) []byte {
	return []byte(fmt.Sprintf("user-msg:%d:%019d:%019d", userID, at.UnixNano(), id))
}

func unreadKey(receiverID, senderID domain.UserID, id uint64) []byte {
	return []byte(fmt.Sprintf("unread:%d:%d:%019d", receiverID, senderID, id))
}

func senderFromUnreadKey(key string) (domain.UserID, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("malformed unread key %q", key)
	}
	sender, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("malformed unread key %q: %w", key, err)
	}
	return domain.UserID(sender), nil
}

func decodeMessage(val []byte) (domain.Message, error) {
	var rec messageRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return domain.Message{}, err
	}
	return toMessage(rec), nil
}

func fromMessage(msg domain.Message) messageRecord {
	return messageRecord{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		SentAt:     msg.SentAt.UnixNano(),
		Status:     string(msg.Status),
	}
}

func toMessage(rec messageRecord) domain.Message {
	return domain.Message{
		ID:         rec.ID,
		SenderID:   rec.SenderID,
		ReceiverID: rec.ReceiverID,
		Content:    rec.Content,
		SentAt:     time.Unix(0, rec.SentAt).UTC(),
		Status:     domain.Status(rec.Status),
	}
}
