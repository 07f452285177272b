package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is keyed by the owner's identity id. AvatarUrl holds a storage
// path in the avatars bucket, not a fetchable url.
type Profile struct {
	Id        UserId
	Username  string
	Website   string
	AvatarUrl string
	UpdatedAt time.Time
}

type ProfileStore interface {
	ById(ctx context.Context, id UserId) (Profile, error)

	// Writes the whole record, creating it when missing.
	Upsert(ctx context.Context, profile Profile) (Profile, error)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
