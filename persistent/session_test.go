package persistent

import (
	"context"
	"testing"

	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *inmem.ActivityStore) {
	bdb, err := buntdb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })

	activityStore := inmem.NewActivityStore()
	sessionStore := &SessionStore{Buntdb: bdb, ActivityStore: &activityStore}
	if err := sessionStore.CreateIndexes(); err != nil {
		t.Fatal(err)
	}
	return sessionStore, &activityStore
}

func TestSessionRegisterAndRefresh(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sessionStore, activityStore := newTestSessionStore(t)

	session, err := sessionStore.RegisterNew(ctx, "9231982", "192.168.0.101", "Chrome/openBased")
	if !assert.NoError(err) {
		return
	}
	assert.Equal(profiles.UserId("9231982"), session.UserId)
	assert.Equal("192.168.0.101", session.Ip)
	assert.Equal("Chrome/openBased", session.UserAgent)

	logs, err := activityStore.ByUserId(ctx, session.UserId)
	if !assert.NoError(err) {
		return
	}
	lastLog := logs[0]
	assert.Equal(profiles.ActivitySessionCreated, lastLog.Name)
	assert.Equal("192.168.0.101", lastLog.Data["ip"])
	assert.Equal("Chrome/openBased", lastLog.Data["userAgent"])

	// test refresh without changes
	{
		session, err := sessionStore.AcquireAndRefresh(ctx, session.Token, "192.168.0.101", "Chrome/openBased")
		if !assert.NoError(err) {
			return
		}
		refreshedLogs, err := activityStore.ByUserId(ctx, session.UserId)
		if !assert.NoError(err) {
			return
		}
		// session refresh should not change logs
		assert.Equal(logs, refreshedLogs)
	}

	// test refresh with different ip
	{
		session, err := sessionStore.AcquireAndRefresh(ctx, session.Token, "192.168.0.102", "Chrome/openBased")
		if !assert.NoError(err) {
			return
		}
		refreshedLogs, err := activityStore.ByUserId(ctx, session.UserId)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(len(logs)+1, len(refreshedLogs))

		latestLog := refreshedLogs[0]
		if assert.Equal(profiles.ActivitySessionChangedIp, latestLog.Name) {
			assert.Equal(session.Id, latestLog.Data["session_id"])
			assert.Equal("192.168.0.101", latestLog.Data["previous_ip"])
			assert.Equal("192.168.0.102", latestLog.Data["new_ip"])
		}
	}

	// test refresh with different user agent
	{
		session, err := sessionStore.AcquireAndRefresh(ctx, session.Token, "192.168.0.102", "Safari/macbockOS")
		if !assert.NoError(err) {
			return
		}
		refreshedLogs, err := activityStore.ByUserId(ctx, session.UserId)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(len(logs)+2, len(refreshedLogs))

		latestLog := refreshedLogs[0]
		if assert.Equal(profiles.ActivitySessionChangedUserAgent, latestLog.Name) {
			assert.Equal(session.Id, latestLog.Data["session_id"])
			assert.Equal("Chrome/openBased", latestLog.Data["previous_user_agent"])
			assert.Equal("Safari/macbockOS", latestLog.Data["new_user_agent"])
		}
	}

	_, err = sessionStore.AcquireAndRefresh(ctx, "missing", "", "")
	assert.ErrorIs(err, profiles.ErrSessionNotFound)
}

func TestSessionInvalidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sessionStore, activityStore := newTestSessionStore(t)

	first, err := sessionStore.RegisterNew(ctx, "u1", "10.0.0.1", "a")
	if !assert.NoError(err) {
		return
	}
	second, err := sessionStore.RegisterNew(ctx, "u1", "10.0.0.2", "b")
	if !assert.NoError(err) {
		return
	}
	third, err := sessionStore.RegisterNew(ctx, "u1", "10.0.0.3", "c")
	if !assert.NoError(err) {
		return
	}
	foreign, err := sessionStore.RegisterNew(ctx, "u2", "10.0.0.4", "d")
	if !assert.NoError(err) {
		return
	}

	sessions, err := sessionStore.ActiveSessions(first.Token)
	if assert.NoError(err) {
		assert.Len(sessions, 3)
		for _, s := range sessions {
			assert.Equal(profiles.UserId("u1"), s.UserId)
		}
	}

	// sessions of other users cannot be invalidated by id
	assert.ErrorIs(sessionStore.InvalidateById("u1", foreign.Id), profiles.ErrSessionNotFound)
	assert.NoError(sessionStore.InvalidateById("u1", third.Id))
	exists, err := sessionStore.Exists(third.Token)
	assert.NoError(err)
	assert.False(exists)

	assert.NoError(sessionStore.InvalidateAllExcept(first.Token))
	exists, _ = sessionStore.Exists(second.Token)
	assert.False(exists)
	exists, _ = sessionStore.Exists(first.Token)
	assert.True(exists)
	exists, _ = sessionStore.Exists(foreign.Token)
	assert.True(exists)

	assert.NoError(sessionStore.InvalidateByAuthToken(ctx, first.Token))
	_, err = sessionStore.ByToken(first.Token)
	assert.ErrorIs(err, profiles.ErrSessionNotFound)
	assert.ErrorIs(sessionStore.InvalidateByAuthToken(ctx, first.Token), profiles.ErrSessionNotFound)

	logs, err := activityStore.ByUserId(ctx, "u1")
	if assert.NoError(err) {
		assert.Equal(profiles.ActivitySignedOut, logs[0].Name)
		assert.Equal(first.Id, logs[0].Data["session_id"])
	}
}

func Test_GenerateSessionTokenLength(t *testing.T) {
	assert := assert.New(t)

	token, err := generateSessionToken()
	if assert.NoError(err) {
		assert.True(len(token) > 20)
		assert.NotContains(token, ":")
	}
}
