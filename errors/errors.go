package errors

import "fmt"

var (
	ErrEmptyContent       = fmt.Errorf("message content is empty")
	ErrSelfConversation   = fmt.Errorf("a user cannot message themself")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrStoreUnavailable   = fmt.Errorf("message store unavailable")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrSelfFollow         = fmt.Errorf("a user cannot follow themself")
	ErrAlreadyFollowing   = fmt.Errorf("already following this user")
	ErrNotFollowing       = fmt.Errorf("not following this user")
	ErrNotOnShelf         = fmt.Errorf("book is not on this shelf")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)
