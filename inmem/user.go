package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/oauth"
)

type UserStore struct {
	users    map[profiles.UserId]profiles.User
	profiles *ProfileStore
	mutex    sync.RWMutex
}

// NewUserStore creates users store. Registration creates empty profiles in
// profileStore when it is not nil.
func NewUserStore(profileStore *ProfileStore) UserStore {
	return UserStore{
		users:    map[profiles.UserId]profiles.User{},
		profiles: profileStore,
		mutex:    sync.RWMutex{},
	}
}

var _ profiles.UserStore = (*UserStore)(nil)

func (s *UserStore) RegisterOAuthUser(ctx context.Context, u oauth.User) (profiles.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, user := range s.users {
		if user.Subject == u.Subject {
			user.Email = profiles.Email(u.Email)
			user.Name = u.DisplayName()
			s.users[id] = user
			return user, nil
		}
	}

	user := profiles.User{
		Id:        profiles.UserId(uuid.New().String()),
		CreatedAt: time.Now().UTC(),
		Roles:     profiles.Roles{},
		Email:     profiles.Email(u.Email),
		Name:      u.DisplayName(),
		Subject:   u.Subject,
	}
	s.users[user.Id] = user

	if s.profiles != nil {
		s.profiles.createEmpty(user.Id)
	}
	return user, nil
}

func (s *UserStore) ById(ctx context.Context, userId profiles.UserId) (profiles.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	u, ok := s.users[userId]
	if !ok {
		return u, profiles.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) BySubject(ctx context.Context, subject string) (profiles.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, u := range s.users {
		if u.Subject == subject {
			return u, nil
		}
	}
	return profiles.User{}, profiles.ErrUserNotFound
}

func (s *UserStore) Update(ctx context.Context, user profiles.User) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.users[user.Id]; !ok {
		return profiles.ErrUserNotFound
	}
	s.users[user.Id] = user
	return nil
}
