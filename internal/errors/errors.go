// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrConflict              = errors.New("conflict")
	ErrNoValidatedRecipients = errors.New("campaign has no validated recipients")
	ErrAllRecipientsFailed   = errors.New("all recipients failed")
	ErrProductNotLinked      = errors.New("campaign has no linked coupon product")
	ErrInvalidPhone          = errors.New("invalid phone number")
)

// ErrCampaignNotFound is returned when a campaign id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// NotFoundError covers every other entity lookup.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func NewNotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError is a caller mistake; it is never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConflict wraps ErrConflict with a description.
func NewConflict(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, a...))
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	var cnf *ErrCampaignNotFound
	return errors.As(err, &nf) || errors.As(err, &cnf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrNoValidatedRecipients) ||
		errors.Is(err, ErrProductNotLinked) ||
		errors.Is(err, ErrInvalidPhone)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
