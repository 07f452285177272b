package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/oauth"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	Id         string            `bun:",pk,type:uuid"`
	CreatedAt  time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	RolesNames []profiles.RoleId `bun:",notnull,array"`
	Subject    string            `bun:",notnull,unique"`
	Email      string            `bun:",notnull"`
	Name       string            `bun:",notnull"`

	// Mapped (in AfterScanRow hook) roles from RolesNames.
	Roles profiles.Roles `bun:"-"`
}

func (u User) ToDomain() profiles.User {
	return profiles.User{
		Id:        profiles.UserId(u.Id),
		CreatedAt: u.CreatedAt,
		Roles:     u.Roles,
		Email:     profiles.Email(u.Email),
		Name:      u.Name,
		Subject:   u.Subject,
	}
}

var _ bun.AfterScanRowHook = (*User)(nil)

func (u *User) AfterScanRow(ctx context.Context) error {
	u.Roles = profiles.RolesByIds(u.RolesNames)
	return nil
}

type UserStore struct {
	DB *bun.DB
}

var _ profiles.UserStore = (*UserStore)(nil)

func (s *UserStore) RegisterOAuthUser(ctx context.Context, u oauth.User) (profiles.User, error) {
	user := &User{
		Id:         uuid.New().String(),
		RolesNames: []profiles.RoleId{},
		Subject:    u.Subject,
		Email:      u.Email,
		Name:       u.DisplayName(),
	}

	err := s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(user).
			On(`CONFLICT (subject) DO UPDATE SET email=EXCLUDED.email, name=EXCLUDED.name`).
			Returning("id, created_at, roles_names").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		profile := &Profile{Id: user.Id}
		_, err = tx.NewInsert().
			Model(profile).
			On(`CONFLICT (id) DO NOTHING`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return profiles.User{}, err
	}

	user.Roles = profiles.RolesByIds(user.RolesNames)
	return user.ToDomain(), nil
}

func (s *UserStore) ById(ctx context.Context, userId profiles.UserId) (profiles.User, error) {
	user := new(User)
	err := s.DB.NewSelect().
		Model(user).
		Where("u.id=?", string(userId)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profiles.User{}, profiles.ErrUserNotFound
		}
		return profiles.User{}, fmt.Errorf("select user: %w", err)
	}
	return user.ToDomain(), nil
}

func (s *UserStore) Update(ctx context.Context, user profiles.User) error {
	_, err := s.DB.NewUpdate().
		Model(&User{
			Id:         string(user.Id),
			RolesNames: user.Roles.Ids(),
			Subject:    user.Subject,
			Email:      string(user.Email),
			Name:       user.Name,
		}).
		Column("roles_names", "email", "name").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	return nil
}
