package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/profilehub/profiles"
	"github.com/uptrace/bun"
)

type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	Id        string    `bun:",pk,type:uuid"`
	Username  string    `bun:",notnull,default:''"`
	Website   string    `bun:",notnull,default:''"`
	AvatarUrl string    `bun:",notnull,default:''"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (p Profile) ToDomain() profiles.Profile {
	return profiles.Profile{
		Id:        profiles.UserId(p.Id),
		Username:  p.Username,
		Website:   p.Website,
		AvatarUrl: p.AvatarUrl,
		UpdatedAt: p.UpdatedAt,
	}
}

type ProfileStore struct {
	DB *bun.DB
}

var _ profiles.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) ById(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	profile := new(Profile)
	err := s.DB.NewSelect().
		Model(profile).
		Where("p.id=?", string(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profiles.Profile{}, profiles.ErrProfileNotFound
		}
		return profiles.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile.ToDomain(), nil
}

func (s *ProfileStore) Upsert(ctx context.Context, p profiles.Profile) (profiles.Profile, error) {
	profile := &Profile{
		Id:        string(p.Id),
		Username:  p.Username,
		Website:   p.Website,
		AvatarUrl: p.AvatarUrl,
		UpdatedAt: p.UpdatedAt,
	}
	_, err := s.DB.NewInsert().
		Model(profile).
		On("CONFLICT (id) DO UPDATE SET " +
			"username=EXCLUDED.username, website=EXCLUDED.website, " +
			"avatar_url=EXCLUDED.avatar_url, updated_at=EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile.ToDomain(), nil
}
