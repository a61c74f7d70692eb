//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"libroreads/domain"
	apperrors "libroreads/errors"
)

type IUserRepository interface {
	Create(username, email, passwordHash string) (domain.User, error)
	GetByID(userID domain.UserID) (domain.User, error)
	GetByEmail(email string) (domain.User, error)
	Exists(userID domain.UserID) (bool, error)
	UpdateProfile(userID domain.UserID, description, imageURL, theme string) (domain.User, error)
	Close() error
}

// UserRepository is the user directory backing the messaging core's
// existence checks and the auth service's lookups.
//
// Keys:
//
//	user:id:{id_padded}   -> user record
//	user:email:{email}    -> id key (uniqueness + login lookup)
//	user:name:{username}  -> id key (uniqueness)
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 10)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

type userRecord struct {
	ID           domain.UserID `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password_hash"`
	Description  string        `json:"description"`
	ImageURL     string        `json:"image_url"`
	Theme        string        `json:"theme"`
	CreatedAt    int64         `json:"created_at"`
}

// Create persists a new user with the next sequential id. Username and
// email uniqueness are enforced inside the transaction.
func (u *UserRepository) Create(username, email, passwordHash string) (domain.User, error) {
	id, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user id: %w", err)
	}

	user := domain.User{
		ID:           domain.UserID(id + 1),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Theme:        "light",
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, err
	}

	idKey := userIDKey(user.ID)
	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(idKey, data); err != nil {
			return err
		}
		if err := txn.Set(emailKey(email), idKey); err != nil {
			return err
		}
		return txn.Set(usernameKey(username), idKey)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetByID(userID domain.UserID) (domain.User, error) {
	var rec userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

func (u *UserRepository) GetByEmail(email string) (domain.User, error) {
	var rec userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		idKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(idKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

func (u *UserRepository) Exists(userID domain.UserID) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userIDKey(userID))
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

// UpdateProfile overwrites the mutable profile fields. Identity fields
// (username, email, password hash) are untouched here.
func (u *UserRepository) UpdateProfile(userID domain.UserID, description, imageURL, theme string) (domain.User, error) {
	var rec userRecord
	err := u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(userID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return err
		}
		rec.Description = description
		rec.ImageURL = imageURL
		if theme != "" {
			rec.Theme = theme
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(userIDKey(userID), data)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

func userIDKey(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%019d", userID))
}

func emailKey(email string) []byte {
	return []byte("user:email:" + email)
}

func usernameKey(username string) []byte {
	return []byte("user:name:" + username)
}

func fromUser(user domain.User) userRecord {
	return userRecord{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Description:  user.Description,
		ImageURL:     user.ImageURL,
		Theme:        user.Theme,
		CreatedAt:    user.CreatedAt.Unix(),
	}
}

func toUser(rec userRecord) domain.User {
	return domain.User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Description:  rec.Description,
		ImageURL:     rec.ImageURL,
		Theme:        rec.Theme,
		CreatedAt:    time.Unix(rec.CreatedAt, 0).UTC(),
	}
}
