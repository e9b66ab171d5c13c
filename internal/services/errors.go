package services

import (
	"errors"
	"fmt"

	"whispra-server/internal/db"
)

var (
	// ErrUserNotFound indicates the recipient does not exist
	ErrUserNotFound = errors.New("User not found")

	// ErrNotAccepting indicates the recipient has turned messages off
	ErrNotAccepting = errors.New("User is not accepting messages")

	// ErrStorageUnavailable indicates the database could not be reached
	ErrStorageUnavailable = db.ErrUnavailable

	// ErrChatIDTaken indicates the chat is already linked to another user
	ErrChatIDTaken = db.ErrChatIDTaken
)

// ValidationError reports bad caller input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TooLongError is the ValidationError raised when text exceeds the
// recipient's message limit
type TooLongError struct {
	Limit int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("Message is too long (max %d characters)", e.Limit)
}

// IsValidation reports whether err is caller input that should map to 400
func IsValidation(err error) bool {
	var validationErr *ValidationError
	var tooLongErr *TooLongError
	return errors.As(err, &validationErr) || errors.As(err, &tooLongErr)
}
