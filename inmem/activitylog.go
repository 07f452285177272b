package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/profilehub/profiles"
)

type ActivityStore struct {
	lastId int64
	logs   map[profiles.UserId][]profiles.ActivityLog
	mutex  sync.RWMutex
}

func NewActivityStore() ActivityStore {
	return ActivityStore{
		lastId: 0,
		logs:   make(map[profiles.UserId][]profiles.ActivityLog),
		mutex:  sync.RWMutex{},
	}
}

var _ profiles.ActivityStore = (*ActivityStore)(nil)

func (s *ActivityStore) AddLog(ctx context.Context, userId profiles.UserId, activity profiles.Activity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastId++
	s.logs[userId] = append(s.logs[userId], profiles.ActivityLog{
		Id:        s.lastId,
		CreatedAt: time.Now().UTC(),
		UserId:    userId,
		Name:      activity.Name,
		Data:      activity.Data,
	})
	return nil
}

func (s *ActivityStore) ByUserId(ctx context.Context, userId profiles.UserId) ([]profiles.ActivityLog, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	logs := s.logs[userId]
	recentFirst := make([]profiles.ActivityLog, len(logs))
	for i, log := range logs {
		recentFirst[len(logs)-1-i] = log
	}
	return recentFirst, nil
}
