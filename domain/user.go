// Package domain contains core concepts of the book reader network.
// This file defines the User profile entity.
package domain

import "time"

type User struct {
	ID           UserID
	Username     string
	Email        string
	PasswordHash string
	Description  string
	ImageURL     string
	Theme        string
	CreatedAt    time.Time
}
