package profiles

import (
	"context"
	"errors"
)

const AvatarsBucket = "avatars"

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
)

type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// ObjectStore addresses binary objects of a single bucket by path.
type ObjectStore interface {
	// Fails with ErrObjectExists when the path is taken.
	Upload(ctx context.Context, path string, object Object) error

	Download(ctx context.Context, path string) (Object, error)
}

// Backend is the single data-access surface used by the account screen and
// the api: profile fetch-by-id and upsert, avatar upload and download.
type Backend interface {
	FetchProfile(ctx context.Context, id UserId) (Profile, error)

	UpsertProfile(ctx context.Context, profile Profile) (Profile, error)

	Upload(ctx context.Context, path string, object Object) error

	Download(ctx context.Context, path string) (Object, error)
}
