//go:generate go run go.uber.org/mock/mockgen -source=follow.go -destination=../mocks/mock_follow_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"libroreads/domain"
	apperrors "libroreads/errors"
)

type IFollowRepository interface {
	Follow(followerID, followingID domain.UserID) error
	Unfollow(followerID, followingID domain.UserID) error
	Following(userID domain.UserID) ([]domain.UserID, error)
	Followers(userID domain.UserID) ([]domain.UserID, error)
	IsFollowing(followerID, followingID domain.UserID) (bool, error)
}

// FollowRepository stores the directed follow graph.
//
// Each edge is written twice so both directions are a prefix scan:
//
//	follow:out:{follower}:{following} -> follow record
//	follow:in:{following}:{follower}  -> follow record
//
// Follow and Unfollow are strictly separate operations: following an
// already-followed user is an error, never an implicit unfollow.
type FollowRepository struct {
	db *badger.DB
}

func NewFollowRepository(db *badger.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

type followRecord struct {
	FollowerID  domain.UserID `json:"follower_id"`
	FollowingID domain.UserID `json:"following_id"`
	CreatedAt   int64         `json:"created_at"`
}

func (f *FollowRepository) Follow(followerID, followingID domain.UserID) error {
	if followerID == followingID {
		return apperrors.ErrSelfFollow
	}
	rec := followRecord{
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   time.Now().UTC().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return f.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(outKey(followerID, followingID)); err == nil {
			return apperrors.ErrAlreadyFollowing
		}
		if err := txn.Set(outKey(followerID, followingID), data); err != nil {
			return err
		}
		return txn.Set(inKey(followingID, followerID), data)
	})
}

func (f *FollowRepository) Unfollow(followerID, followingID domain.UserID) error {
	err := f.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(outKey(followerID, followingID)); err != nil {
			return err
		}
		if err := txn.Delete(outKey(followerID, followingID)); err != nil {
			return err
		}
		return txn.Delete(inKey(followingID, followerID))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrNotFollowing
	}
	return err
}

func (f *FollowRepository) Following(userID domain.UserID) ([]domain.UserID, error) {
	return f.scanEdges(fmt.Sprintf("follow:out:%d:", userID))
}

func (f *FollowRepository) Followers(userID domain.UserID) ([]domain.UserID, error) {
	return f.scanEdges(fmt.Sprintf("follow:in:%d:", userID))
}

func (f *FollowRepository) IsFollowing(followerID, followingID domain.UserID) (bool, error) {
	err := f.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(outKey(followerID, followingID))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *FollowRepository) scanEdges(prefixStr string) ([]domain.UserID, error) {
	var ids []domain.UserID
	err := f.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			raw := strings.TrimPrefix(key, prefixStr)
			id, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("malformed follow key %q: %w", key, err)
			}
			ids = append(ids, domain.UserID(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func outKey(followerID, followingID domain.UserID) []byte {
	return []byte(fmt.Sprintf("follow:out:%d:%d", followerID, followingID))
}

func inKey(followingID, followerID domain.UserID) []byte {
	return []byte(fmt.Sprintf("follow:in:%d:%d", followingID, followerID))
}
