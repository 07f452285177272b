package inmem

import (
	"context"
	"testing"

	"github.com/profilehub/profiles"
	"github.com/stretchr/testify/assert"
)

func TestObjectStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewObjectStore()
	_, err := s.Download(ctx, "missing.png")
	assert.ErrorIs(err, profiles.ErrObjectNotFound)

	object := profiles.Object{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	if !assert.NoError(s.Upload(ctx, "a.png", object)) {
		return
	}
	assert.ErrorIs(s.Upload(ctx, "a.png", object), profiles.ErrObjectExists)

	downloaded, err := s.Download(ctx, "a.png")
	if assert.NoError(err) {
		assert.Equal("a.png", downloaded.Path)
		assert.Equal("image/png", downloaded.ContentType)
		assert.Equal(object.Data, downloaded.Data)
	}
}

func TestProfileStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewProfileStore()
	_, err := s.ById(ctx, "u1")
	assert.ErrorIs(err, profiles.ErrProfileNotFound)

	profile := profiles.Profile{Id: "u1", Username: "alice", Website: "https://a.example", AvatarUrl: "x.png"}
	saved, err := s.Upsert(ctx, profile)
	if assert.NoError(err) {
		assert.Equal(profile, saved)
	}

	profile.Username = "bob"
	_, err = s.Upsert(ctx, profile)
	assert.NoError(err)
	found, err := s.ById(ctx, "u1")
	if assert.NoError(err) {
		assert.Equal("bob", found.Username)
	}
}
