package mock

import (
	"context"

	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/oauth"
)

type UserStore struct {
	RegisterOAuthUserFn func(ctx context.Context, u oauth.User) (profiles.User, error)

	ByIdFn func(ctx context.Context, userId profiles.UserId) (profiles.User, error)

	UpdateFn func(ctx context.Context, user profiles.User) error
}

func (s UserStore) RegisterOAuthUser(ctx context.Context, u oauth.User) (profiles.User, error) {
	return s.RegisterOAuthUserFn(ctx, u)
}

func (s UserStore) ById(ctx context.Context, userId profiles.UserId) (profiles.User, error) {
	return s.ByIdFn(ctx, userId)
}

func (s UserStore) Update(ctx context.Context, user profiles.User) error {
	return s.UpdateFn(ctx, user)
}
