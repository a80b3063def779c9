package service

import (
	"errors"
	"fmt"

	"github.com/vadimbarashkov/redirector/internal/models"
)

var (
	// ErrPasswordRequired is returned when a password-protected link is
	// resolved without a credential.
	ErrPasswordRequired = errors.New("password required")
	// ErrPasswordIncorrect is returned when the supplied credential does
	// not match the link's password.
	ErrPasswordIncorrect = errors.New("password incorrect")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries
	// for generating a short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// LinkInactiveError reports that a link exists but may not be followed
// right now.
type LinkInactiveError struct {
	Reason models.Activity
}

func (e *LinkInactiveError) Error() string {
	return fmt.Sprintf("link inactive: %s", e.ReasonText())
}

// ReasonText returns the human-readable reason surfaced to clients.
func (e *LinkInactiveError) ReasonText() string {
	switch e.Reason {
	case models.ActivityScheduled:
		return "scheduled"
	case models.ActivityExpired:
		return "expired"
	case models.ActivityLimitReached:
		return "limit reached"
	default:
		return string(e.Reason)
	}
}
