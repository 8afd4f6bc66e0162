package market

import "errors"

var (
	// ErrNotFound occurs when a user or post id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an insert collided with an existing id.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized indicates the supplied token does not match the user.
	ErrUnauthorized = errors.New("invalid token")

	// ErrOutOfRange indicates a feed offset past the end of the feed.
	ErrOutOfRange = errors.New("index out of bounds")
)
