package service

import (
	"errors"
	"fmt"
)

// Validation failures surfaced by the chat room registry.
var (
	// ErrInvalidParticipants indicates a request where buyer and seller are the same user.
	ErrInvalidParticipants = errors.New("buyer and seller cannot be the same person")
	// ErrOwnershipMismatch indicates the named seller does not own the product.
	ErrOwnershipMismatch = errors.New("seller id does not match product owner")
)

// NotFoundError identifies a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   uint
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id: %d", e.Kind, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound)
}
