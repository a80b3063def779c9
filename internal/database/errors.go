package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new link with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when no link exists for a short code,
	// or the link has been soft-deleted.
	ErrLinkNotFound = errors.New("link not found")
)
