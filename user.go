package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/profilehub/profiles/oauth"
)

var ErrUserNotFound = errors.New("user not found")

type UserId string

type Email string

type User struct {
	Id        UserId
	CreatedAt time.Time
	Roles     Roles
	Email     Email
	Name      string
	// Subject of the user at the identity provider.
	Subject string
}

// Identity is the read-only view of an authenticated principal.
type Identity struct {
	Id   UserId `json:"id"`
	Name string `json:"name"`
}

// Identity uses the email as display name, falling back to the provider name.
func (u User) Identity() Identity {
	name := string(u.Email)
	if name == "" {
		name = u.Name
	}
	return Identity{Id: u.Id, Name: name}
}

type UserStore interface {
	// Registers new user or refreshes the existing one and ensures an empty profile exists.
	RegisterOAuthUser(ctx context.Context, u oauth.User) (User, error)

	ById(ctx context.Context, userId UserId) (User, error)

	Update(ctx context.Context, user User) error
}
