package inmem

import (
	"context"
	"sync"

	"github.com/profilehub/profiles"
)

type ProfileStore struct {
	profiles map[profiles.UserId]profiles.Profile
	mutex    sync.RWMutex
}

func NewProfileStore() ProfileStore {
	return ProfileStore{
		profiles: make(map[profiles.UserId]profiles.Profile),
		mutex:    sync.RWMutex{},
	}
}

var _ profiles.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) ById(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return profiles.Profile{}, profiles.ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, profile profiles.Profile) (profiles.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.profiles[profile.Id] = profile
	return profile, nil
}

func (s *ProfileStore) createEmpty(id profiles.UserId) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.profiles[id]; !ok {
		s.profiles[id] = profiles.Profile{Id: id}
	}
}
