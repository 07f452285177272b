package persistent

import (
	"context"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/tidwall/buntdb"
)

const sessionTTL = 30 * 24 * time.Hour // 30 days

type Session struct {
	Id             string    `json:"id"`
	UserId         string    `json:"userId"`
	Token          string    `json:"token"`
	Ip             string    `json:"ip"`
	UserAgent      string    `json:"userAgent"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func (s Session) ToDomain() profiles.Session {
	return profiles.Session{
		Id:             s.Id,
		UserId:         profiles.UserId(s.UserId),
		Token:          s.Token,
		Ip:             s.Ip,
		UserAgent:      s.UserAgent,
		LastAccessedAt: s.LastAccessedAt,
		ExpiresAt:      s.ExpiresAt,
	}
}

// SessionStore keeps sessions in buntdb under "session:<token>" with a
// "session_by_id:<id>" pointer back to the token.
type SessionStore struct {
	Buntdb        *buntdb.DB
	ActivityStore profiles.ActivityStore
}

var _ profiles.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) CreateIndexes() error {
	return s.Buntdb.CreateIndex("sessions", "session:*", buntdb.IndexJSON("userId"))
}

func (s *SessionStore) RegisterNew(ctx context.Context, userId profiles.UserId, ip string, userAgent string) (profiles.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return profiles.Session{}, fmt.Errorf("generate token: %w", err)
	}
	id := uuid.New().String()

	err = s.ActivityStore.AddLog(ctx, userId, profiles.Activity{
		Name: profiles.ActivitySessionCreated,
		Data: map[string]interface{}{
			"ip":         ip,
			"userAgent":  userAgent,
			"session_id": id,
		},
	})
	if err != nil {
		return profiles.Session{}, fmt.Errorf("add session_created activity log: %w", err)
	}

	now := time.Now().UTC()
	session := Session{
		Id:             id,
		UserId:         string(userId),
		Token:          token,
		Ip:             ip,
		UserAgent:      userAgent,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(sessionTTL),
	}
	serializedSession, err := json.Marshal(&session)
	if err != nil {
		return profiles.Session{}, fmt.Errorf("session serialize: %w", err)
	}

	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		expireOptions := &buntdb.SetOptions{Expires: true, TTL: sessionTTL}

		_, replaced, err := tx.Set("session_by_id:"+session.Id, session.Token, expireOptions)
		if err != nil {
			return fmt.Errorf("set map session id to auth token: %w", err)
		}
		if replaced {
			return fmt.Errorf("session id collision '%s'", session.Id)
		}

		_, _, err = tx.Set("session:"+session.Token, string(serializedSession), expireOptions)
		if err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
	if err != nil {
		return profiles.Session{}, fmt.Errorf("bunt update: %w", err)
	}
	return session.ToDomain(), nil
}

func getSession(tx *buntdb.Tx, token string) (Session, error) {
	var session Session
	serializedSession, err := tx.Get("session:" + token)
	if err != nil {
		return Session{}, fmt.Errorf("get serialized session: %w", err)
	}
	if err := json.Unmarshal([]byte(serializedSession), &session); err != nil {
		return Session{}, fmt.Errorf("deserialize session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) ByToken(token string) (profiles.Session, error) {
	var session Session
	err := s.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		session, err = getSession(tx, token)
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return profiles.Session{}, profiles.ErrSessionNotFound
		}
		return profiles.Session{}, fmt.Errorf("buntdb view: %w", err)
	}
	return session.ToDomain(), nil
}

func (s *SessionStore) Exists(token string) (bool, error) {
	err := s.Buntdb.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get("session:" + token)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, buntdb.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("bunt view: %w", err)
	}
}

// userSessions lists sessions of the owner of token.
func (s *SessionStore) userSessions(tx *buntdb.Tx, token string) ([]Session, error) {
	owner, err := getSession(tx, token)
	if err != nil {
		return nil, err
	}
	pivot, err := json.Marshal(map[string]string{"userId": owner.UserId})
	if err != nil {
		return nil, fmt.Errorf("serialize pivot: %w", err)
	}

	sessions := make([]Session, 0, 10)
	var listErr error
	err = tx.AscendEqual("sessions", string(pivot), func(key, value string) bool {
		var session Session
		if err := json.Unmarshal([]byte(value), &session); err != nil {
			listErr = fmt.Errorf("deserialize session: %w", err)
			return false
		}
		sessions = append(sessions, session)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("ascend sessions: %w", err)
	}
	if listErr != nil {
		return nil, fmt.Errorf("ascend content sessions: %w", listErr)
	}
	return sessions, nil
}

func (s *SessionStore) ActiveSessions(token string) ([]profiles.Session, error) {
	var sessions []Session
	err := s.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		sessions, err = s.userSessions(tx, token)
		if err != nil {
			return fmt.Errorf("lookup active sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, profiles.ErrSessionNotFound
		}
		return nil, fmt.Errorf("buntdb view: %w", err)
	}

	ds := make([]profiles.Session, len(sessions))
	for i, session := range sessions {
		ds[i] = session.ToDomain()
	}
	return ds, nil
}

func (s *SessionStore) AcquireAndRefresh(ctx context.Context, token string, ip string, userAgent string) (profiles.Session, error) {
	var previousSession Session
	var session Session
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		var err error
		previousSession, err = getSession(tx, token)
		if err != nil {
			return err
		}

		session = previousSession
		session.Ip = ip
		session.UserAgent = userAgent
		session.LastAccessedAt = time.Now().UTC()
		session.ExpiresAt = session.LastAccessedAt.Add(sessionTTL)
		serializedSession, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("serialize session: %w", err)
		}

		expireOptions := &buntdb.SetOptions{Expires: true, TTL: sessionTTL}
		_, _, err = tx.Set("session:"+token, string(serializedSession), expireOptions)
		if err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		_, _, err = tx.Set("session_by_id:"+session.Id, token, expireOptions)
		if err != nil {
			return fmt.Errorf("store session id: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return profiles.Session{}, profiles.ErrSessionNotFound
		}
		return profiles.Session{}, fmt.Errorf("refresh session in buntdb: %w", err)
	}

	userId := profiles.UserId(session.UserId)
	if previousSession.Ip != session.Ip {
		activity := profiles.Activity{Name: profiles.ActivitySessionChangedIp, Data: map[string]interface{}{
			"session_id":  session.Id,
			"previous_ip": previousSession.Ip,
			"new_ip":      session.Ip,
		}}
		if err := s.ActivityStore.AddLog(ctx, userId, activity); err != nil {
			return profiles.Session{}, fmt.Errorf("log ip change: %w", err)
		}
	}
	if previousSession.UserAgent != session.UserAgent {
		activity := profiles.Activity{Name: profiles.ActivitySessionChangedUserAgent, Data: map[string]interface{}{
			"session_id":          session.Id,
			"previous_user_agent": previousSession.UserAgent,
			"new_user_agent":      session.UserAgent,
		}}
		if err := s.ActivityStore.AddLog(ctx, userId, activity); err != nil {
			return profiles.Session{}, fmt.Errorf("log useragent change: %w", err)
		}
	}
	return session.ToDomain(), nil
}

func (s *SessionStore) InvalidateById(userId profiles.UserId, sessionId string) error {
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		token, err := tx.Get("session_by_id:" + sessionId)
		if err != nil {
			return fmt.Errorf("get session by id: %w", err)
		}
		session, err := getSession(tx, token)
		if err != nil {
			return err
		}
		if userId != profiles.UserId(session.UserId) {
			return profiles.ErrSessionNotFound
		}

		if _, err := tx.Delete("session:" + token); err != nil {
			return fmt.Errorf("delete session by auth token: %w", err)
		}
		if _, err := tx.Delete("session_by_id:" + sessionId); err != nil {
			return fmt.Errorf("delete session by id: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) || errors.Is(err, profiles.ErrSessionNotFound) {
			return profiles.ErrSessionNotFound
		}
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func (s *SessionStore) InvalidateByAuthToken(ctx context.Context, authToken string) error {
	var session Session
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		var err error
		session, err = getSession(tx, authToken)
		if err != nil {
			return err
		}
		if _, err := tx.Delete("session:" + authToken); err != nil {
			return fmt.Errorf("delete session key: %w", err)
		}
		if _, err := tx.Delete("session_by_id:" + session.Id); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("delete session id key: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return profiles.ErrSessionNotFound
		}
		return fmt.Errorf("bunt update: %w", err)
	}

	err = s.ActivityStore.AddLog(ctx, profiles.UserId(session.UserId), profiles.Activity{
		Name: profiles.ActivitySignedOut,
		Data: map[string]interface{}{"session_id": session.Id},
	})
	if err != nil {
		return fmt.Errorf("add signed_out activity log: %w", err)
	}
	return nil
}

func (s *SessionStore) InvalidateAllExcept(exceptToken string) error {
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		sessions, err := s.userSessions(tx, exceptToken)
		if err != nil {
			return fmt.Errorf("user sessions: %w", err)
		}
		for _, session := range sessions {
			if session.Token == exceptToken {
				continue
			}

			_, err = tx.Delete("session_by_id:" + session.Id)
			if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("delete session_by_id: %w", err)
			}
			_, err = tx.Delete("session:" + session.Token)
			if err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return profiles.ErrSessionNotFound
		}
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func generateSessionToken() (string, error) {
	const tokenBytes = 60
	rawToken := make([]byte, tokenBytes)
	if _, err := crand.Read(rawToken); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	// url safe alphabet never yields ":" which separates buntdb key segments
	return base64.RawURLEncoding.EncodeToString(rawToken), nil
}
