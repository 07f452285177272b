package inmem

import (
	"context"
	"sync"

	"github.com/profilehub/profiles"
)

type ObjectStore struct {
	objects map[string]profiles.Object
	mutex   sync.RWMutex
}

func NewObjectStore() ObjectStore {
	return ObjectStore{
		objects: make(map[string]profiles.Object),
		mutex:   sync.RWMutex{},
	}
}

var _ profiles.ObjectStore = (*ObjectStore)(nil)

func (s *ObjectStore) Upload(ctx context.Context, path string, object profiles.Object) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.objects[path]; ok {
		return profiles.ErrObjectExists
	}
	data := make([]byte, len(object.Data))
	copy(data, object.Data)
	s.objects[path] = profiles.Object{Path: path, ContentType: object.ContentType, Data: data}
	return nil
}

func (s *ObjectStore) Download(ctx context.Context, path string) (profiles.Object, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	object, ok := s.objects[path]
	if !ok {
		return profiles.Object{}, profiles.ErrObjectNotFound
	}
	return object, nil
}
