// Package location remembers where each user observes from.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Forken21/botsat/internal/transform"
)

// ErrNotFound is returned when a user has no stored location.
var ErrNotFound = errors.New("location not set")

// ErrInvalidUser is returned for an empty or malformed user ID.
var ErrInvalidUser = errors.New("invalid user id")

// Store maps user IDs to observer locations.
type Store interface {
	Get(ctx context.Context, userID string) (transform.Observer, error)
	Set(ctx context.Context, userID string, obs transform.Observer) error
	Delete(ctx context.Context, userID string) error
}

const maxUserIDLen = 128

// ValidateUserID rejects IDs that are empty, too long, or contain
// whitespace or key separators.
func ValidateUserID(userID string) error {
	if userID == "" || len(userID) > maxUserIDLen {
		return fmt.Errorf("%w: length %d", ErrInvalidUser, len(userID))
	}
	if strings.ContainsAny(userID, " \t\r\n:*?[]") {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}
