package profiles

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	Id             string
	UserId         UserId
	Token          string
	Ip             string
	UserAgent      string
	LastAccessedAt time.Time
	ExpiresAt      time.Time
}

type SessionStore interface {
	RegisterNew(ctx context.Context, userId UserId, ip string, userAgent string) (Session, error)

	ByToken(token string) (Session, error)

	Exists(token string) (bool, error)

	// Sessions of the user owning the token.
	ActiveSessions(token string) ([]Session, error)

	AcquireAndRefresh(ctx context.Context, token string, ip string, userAgent string) (Session, error)

	InvalidateById(userId UserId, sessionId string) error

	// Sign out. Logs the signed_out activity.
	InvalidateByAuthToken(ctx context.Context, authToken string) error

	// Invalidates every other session of the token owner.
	InvalidateAllExcept(exceptToken string) error
}
