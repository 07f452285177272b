package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/profilehub/profiles"
	"github.com/sirupsen/logrus"
)

// Service implements profiles.Backend on top of the profile and object stores.
type Service struct {
	Profiles profiles.ProfileStore
	Objects  profiles.ObjectStore
	Activity profiles.ActivityStore
}

var _ profiles.Backend = (*Service)(nil)

func (s *Service) FetchProfile(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	profile, err := s.Profiles.ById(ctx, id)
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("profile by id: %w", err)
	}
	return profile, nil
}

func (s *Service) UpsertProfile(ctx context.Context, profile profiles.Profile) (profiles.Profile, error) {
	if profile.Id == "" {
		return profiles.Profile{}, errors.New("upsert profile without id")
	}
	profile.UpdatedAt = time.Now().UTC()

	saved, err := s.Profiles.Upsert(ctx, profile)
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("profile upsert: %w", err)
	}

	err = s.Activity.AddLog(ctx, saved.Id, profiles.Activity{
		Name: profiles.ActivityProfileUpdated,
		Data: map[string]interface{}{
			"username":   saved.Username,
			"website":    saved.Website,
			"avatar_url": saved.AvatarUrl,
		},
	})
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("add profile_updated activity log: %w", err)
	}

	logrus.WithField("user_id", saved.Id).Debugln("Profile upserted.")
	return saved, nil
}

func (s *Service) Upload(ctx context.Context, path string, object profiles.Object) error {
	object.Path = path
	if err := s.Objects.Upload(ctx, path, object); err != nil {
		return fmt.Errorf("object upload: %w", err)
	}
	logrus.
		WithField("path", path).
		WithField("size", len(object.Data)).
		Debugln("Object uploaded.")
	return nil
}

func (s *Service) Download(ctx context.Context, path string) (profiles.Object, error) {
	object, err := s.Objects.Download(ctx, path)
	if err != nil {
		return profiles.Object{}, fmt.Errorf("object download: %w", err)
	}
	return object, nil
}
