package persistent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/stretchr/testify/assert"
)

func TestProfileStoreUpsert(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()
	store := &ProfileStore{DB: db}

	id := profiles.UserId(uuid.New().String())
	_, err := store.ById(ctx, id)
	assert.ErrorIs(err, profiles.ErrProfileNotFound)

	updatedAt := time.Now().UTC().Truncate(time.Millisecond)
	created, err := store.Upsert(ctx, profiles.Profile{
		Id:        id,
		Username:  "ww_makin_c",
		Website:   "https://makin.example",
		UpdatedAt: updatedAt,
	})
	if !assert.NoError(err) {
		return
	}
	assert.Equal(id, created.Id)

	_, err = store.Upsert(ctx, profiles.Profile{
		Id:        id,
		Username:  "ww_makin_c",
		AvatarUrl: "0c1e.png",
		UpdatedAt: updatedAt.Add(time.Second),
	})
	if !assert.NoError(err) {
		return
	}

	profile, err := store.ById(ctx, id)
	if !assert.NoError(err) {
		return
	}
	assert.Equal("ww_makin_c", profile.Username)
	assert.Equal("", profile.Website)
	assert.Equal("0c1e.png", profile.AvatarUrl)
	assert.True(profile.UpdatedAt.Equal(updatedAt.Add(time.Second)))
}

func TestObjectStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}
	assert := assert.New(t)
	ctx := context.Background()

	db := PgOpenTest(ctx)
	defer db.Close()
	store := &ObjectStore{DB: db, Bucket: profiles.AvatarsBucket}

	path := uuid.New().String() + ".png"
	_, err := store.Download(ctx, path)
	assert.ErrorIs(err, profiles.ErrObjectNotFound)

	object := profiles.Object{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	if !assert.NoError(store.Upload(ctx, path, object)) {
		return
	}
	assert.ErrorIs(store.Upload(ctx, path, object), profiles.ErrObjectExists)

	// same path in another bucket is a different object
	other := &ObjectStore{DB: db, Bucket: "documents"}
	_, err = other.Download(ctx, path)
	assert.ErrorIs(err, profiles.ErrObjectNotFound)

	downloaded, err := store.Download(ctx, path)
	if assert.NoError(err) {
		assert.Equal(path, downloaded.Path)
		assert.Equal(object.ContentType, downloaded.ContentType)
		assert.Equal(object.Data, downloaded.Data)
	}
}
