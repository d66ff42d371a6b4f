package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidDateRange  = errors.New("invalid date range")
	ErrServiceNotFound   = errors.New("service not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrSignatureInvalid  = errors.New("invalid gateway signature")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrNoSelections      = errors.New("at least one service selection is required")
	ErrBundleRequired    = errors.New("selections of different service kinds require a bundle booking")
	ErrInvalidStatus     = errors.New("invalid status")
)

// ServiceNotFoundError names the catalog entry that could not be resolved.
type ServiceNotFoundError struct {
	Kind ServiceKind
	ID   uuid.UUID
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is lets errors.Is(err, ErrServiceNotFound) match.
func (e *ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}
