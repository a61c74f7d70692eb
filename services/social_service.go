//go:generate go run go.uber.org/mock/mockgen -source=social_service.go -destination=../mocks/mock_social_service.go -package=mocks
package services

import (
	"fmt"
	"time"

	"libroreads/contract"
	"libroreads/domain"
	apperrors "libroreads/errors"
	"libroreads/repositories"
)

type ISocialService interface {
	Follow(followerID, followingID domain.UserID) error
	Unfollow(followerID, followingID domain.UserID) error
	Following(userID domain.UserID) ([]domain.User, error)
	Followers(userID domain.UserID) ([]domain.User, error)
	AddToShelf(userID domain.UserID, bookID string, kind domain.ShelfKind) error
	RemoveFromShelf(userID domain.UserID, bookID string, kind domain.ShelfKind) error
	Shelf(userID domain.UserID, kind domain.ShelfKind) ([]domain.ShelfEntry, error)
}

// SocialService covers the follow graph and the per-user bookshelves.
// Follow and Unfollow never toggle: each is its own operation with its
// own failure mode.
type SocialService struct {
	users   contract.IUserDirectory
	follows repositories.IFollowRepository
	shelves repositories.IBookshelfRepository
}

func NewSocialService(
	users contract.IUserDirectory,
	follows repositories.IFollowRepository,
	shelves repositories.IBookshelfRepository,
) *SocialService {
	return &SocialService{users: users, follows: follows, shelves: shelves}
}

func (s *SocialService) Follow(followerID, followingID domain.UserID) error {
	if followerID == followingID {
		return apperrors.ErrSelfFollow
	}
	if err := s.requireUsers(followerID, followingID); err != nil {
		return err
	}
	return s.follows.Follow(followerID, followingID)
}

func (s *SocialService) Unfollow(followerID, followingID domain.UserID) error {
	if err := s.requireUsers(followerID, followingID); err != nil {
		return err
	}
	return s.follows.Unfollow(followerID, followingID)
}

func (s *SocialService) Following(userID domain.UserID) ([]domain.User, error) {
	ids, err := s.follows.Following(userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ids)
}

func (s *SocialService) Followers(userID domain.UserID) ([]domain.User, error) {
	ids, err := s.follows.Followers(userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ids)
}

func (s *SocialService) AddToShelf(userID domain.UserID, bookID string, kind domain.ShelfKind) error {
	if err := s.requireUsers(userID); err != nil {
		return err
	}
	return s.shelves.Add(domain.ShelfEntry{
		UserID:  userID,
		BookID:  bookID,
		Kind:    kind,
		AddedAt: time.Now().UTC(),
	})
}

func (s *SocialService) RemoveFromShelf(userID domain.UserID, bookID string, kind domain.ShelfKind) error {
	return s.shelves.Remove(userID, bookID, kind)
}

func (s *SocialService) Shelf(userID domain.UserID, kind domain.ShelfKind) ([]domain.ShelfEntry, error) {
	if err := s.requireUsers(userID); err != nil {
		return nil, err
	}
	return s.shelves.List(userID, kind)
}

func (s *SocialService) resolve(ids []domain.UserID) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetByID(id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *SocialService) requireUsers(ids ...domain.UserID) error {
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
