//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"time"

	"libroreads/auth"
	"libroreads/domain"
	apperrors "libroreads/errors"
	"libroreads/repositories"
)

type IAuthService interface {
	Register(username, email, password string) (domain.User, Token, error)
	Login(email, password string) (domain.User, Token, error)
}

type Token string

type AuthService struct {
	users         repositories.IUserRepository
	tokenDuration time.Duration
}

func NewAuthService(users repositories.IUserRepository, tokenDuration time.Duration) *AuthService {
	return &AuthService{users: users, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(username, email, password string) (domain.User, Token, error) {
	req := auth.RegisterRequest{Username: username, Email: email, Password: password}

	// Business rules first, before any expensive hashing.
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", apperrors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees a plain password.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(username, email, hashed)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := auth.GenerateToken(user.ID, s.tokenDuration)
	if err != nil {
		return domain.User{}, "", apperrors.ErrTokenGeneration
	}
	return user, Token(token), nil
}

func (s *AuthService) Login(email, password string) (domain.User, Token, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration.
		return domain.User{}, "", apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", apperrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.tokenDuration)
	if err != nil {
		return domain.User{}, "", apperrors.ErrTokenGeneration
	}
	return user, Token(token), nil
}
