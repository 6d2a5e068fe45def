package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict. DuplicateKeyError matches it with errors.Is.
var ErrAlreadyExists = errors.New("record already exists")

// ErrRecentResetToken is returned when a user already holds a fresh, unused reset token.
var ErrRecentResetToken = errors.New("recent reset token outstanding")

// ErrTokenNotActionable is returned when a reset token is missing, used, or expired.
var ErrTokenNotActionable = errors.New("reset token not actionable")

// DuplicateKeyError reports which unique field collided.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return ErrAlreadyExists.Error()
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError carries constraint violations reported by the store.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
