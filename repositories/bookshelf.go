//go:generate go run go.uber.org/mock/mockgen -source=bookshelf.go -destination=../mocks/mock_bookshelf_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"libroreads/domain"
	apperrors "libroreads/errors"
)

type IBookshelfRepository interface {
	Add(entry domain.ShelfEntry) error
	Remove(userID domain.UserID, bookID string, kind domain.ShelfKind) error
	List(userID domain.UserID, kind domain.ShelfKind) ([]domain.ShelfEntry, error)
}

// BookshelfRepository keeps the favorites and read lists. Book ids are
// opaque catalog references; the catalog itself is an external system.
//
// Keys: shelf:{kind}:{user}:{book_id} -> shelf record
type BookshelfRepository struct {
	db *badger.DB
}

func NewBookshelfRepository(db *badger.DB) *BookshelfRepository {
	return &BookshelfRepository{db: db}
}

type shelfRecord struct {
	UserID  domain.UserID `json:"user_id"`
	BookID  string        `json:"book_id"`
	Kind    string        `json:"kind"`
	AddedAt int64         `json:"added_at"`
}

// Add is idempotent: re-adding an already shelved book rewrites the same
// entry and keeps the original AddedAt.
func (b *BookshelfRepository) Add(entry domain.ShelfEntry) error {
	key := shelfKey(entry.Kind, entry.UserID, entry.BookID)
	data, err := json.Marshal(shelfRecord{
		UserID:  entry.UserID,
		BookID:  entry.BookID,
		Kind:    string(entry.Kind),
		AddedAt: entry.AddedAt.Unix(),
	})
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		}
		return txn.Set(key, data)
	})
}

func (b *BookshelfRepository) Remove(userID domain.UserID, bookID string, kind domain.ShelfKind) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(shelfKey(kind, userID, bookID)); err != nil {
			return err
		}
		return txn.Delete(shelfKey(kind, userID, bookID))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrNotOnShelf
	}
	return err
}

func (b *BookshelfRepository) List(userID domain.UserID, kind domain.ShelfKind) ([]domain.ShelfEntry, error) {
	var recs []shelfRecord
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("shelf:%s:%d:", kind, userID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec shelfRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
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
	return lo.Map(recs, func(rec shelfRecord, _ int) domain.ShelfEntry {
		return toShelfEntry(rec)
	}), nil
}

func shelfKey(kind domain.ShelfKind, userID domain.UserID, bookID string) []byte {
	return []byte(fmt.Sprintf("shelf:%s:%d:%s", kind, userID, bookID))
}

func toShelfEntry(rec shelfRecord) domain.ShelfEntry {
	return domain.ShelfEntry{
		UserID:  rec.UserID,
		BookID:  rec.BookID,
		Kind:    domain.ShelfKind(rec.Kind),
		AddedAt: time.Unix(rec.AddedAt, 0).UTC(),
	}
}
