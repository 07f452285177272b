package mock

import (
	"context"

	"github.com/profilehub/profiles"
)

type ProfileStore struct {
	ByIdFn func(ctx context.Context, id profiles.UserId) (profiles.Profile, error)

	UpsertFn func(ctx context.Context, profile profiles.Profile) (profiles.Profile, error)
}

func (s ProfileStore) ById(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	return s.ByIdFn(ctx, id)
}

func (s ProfileStore) Upsert(ctx context.Context, profile profiles.Profile) (profiles.Profile, error) {
	return s.UpsertFn(ctx, profile)
}
