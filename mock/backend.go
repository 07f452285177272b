package mock

import (
	"context"

	"github.com/profilehub/profiles"
)

type Backend struct {
	FetchProfileFn func(ctx context.Context, id profiles.UserId) (profiles.Profile, error)

	UpsertProfileFn func(ctx context.Context, profile profiles.Profile) (profiles.Profile, error)

	UploadFn func(ctx context.Context, path string, object profiles.Object) error

	DownloadFn func(ctx context.Context, path string) (profiles.Object, error)
}

func (b Backend) FetchProfile(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	return b.FetchProfileFn(ctx, id)
}

func (b Backend) UpsertProfile(ctx context.Context, profile profiles.Profile) (profiles.Profile, error) {
	return b.UpsertProfileFn(ctx, profile)
}

func (b Backend) Upload(ctx context.Context, path string, object profiles.Object) error {
	return b.UploadFn(ctx, path, object)
}

func (b Backend) Download(ctx context.Context, path string) (profiles.Object, error) {
	return b.DownloadFn(ctx, path)
}
