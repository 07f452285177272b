package rest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/profilehub/profiles"
)

const (
	sessionLocalsKey = "session"
	// SessionCookie carries the session token of browser clients.
	SessionCookie = "session_token"
)

type SessionController struct {
	Store profiles.SessionStore
	// Called after a session is invalidated by its owner.
	OnInvalidated func(session profiles.Session)
}

func (c *SessionController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Get("/session", combineHandlers(requestAuthorizer, c.serveCurrentSession))
	app.Delete("/session/:session_id", combineHandlers(requestAuthorizer, c.serveDeleteSession))
	app.Get("/sessions", combineHandlers(requestAuthorizer, c.serveSessions))
	app.Delete("/sessions/other", combineHandlers(requestAuthorizer, c.serveDeleteOtherSessions))
}

func (c *SessionController) serveCurrentSession(ctx *fiber.Ctx) error {
	session, ok := ctx.Locals(sessionLocalsKey).(profiles.Session)
	if !ok {
		return fiber.ErrUnauthorized
	}
	return ctx.JSON(map[string]interface{}{
		"id":             session.Id,
		"userId":         session.UserId,
		"ip":             session.Ip,
		"userAgent":      session.UserAgent,
		"lastAccessedAt": session.LastAccessedAt.Unix(),
		"expiresAt":      session.ExpiresAt.Unix(),
	})
}

func (c *SessionController) serveSessions(ctx *fiber.Ctx) error {
	session, ok := ctx.Locals(sessionLocalsKey).(profiles.Session)
	if !ok {
		return fiber.ErrUnauthorized
	}

	activeSessions, err := c.Store.ActiveSessions(session.Token)
	if err != nil {
		if errors.Is(err, profiles.ErrSessionNotFound) {
			return fiber.ErrForbidden
		} else {
			return err
		}
	}

	// return information about session without providing access
	// to the authorization token.
	type SessionMeta struct {
		Id             string `json:"id"`
		Ip             string `json:"ip"`
		UserAgent      string `json:"userAgent"`
		LastAccessedAt int64  `json:"lastAccessedAt"`
		Current        bool   `json:"current"`
	}
	publicInfos := make([]SessionMeta, len(activeSessions))
	for i, active := range activeSessions {
		publicInfos[i] = SessionMeta{
			Id:             active.Id,
			Ip:             active.Ip,
			UserAgent:      active.UserAgent,
			LastAccessedAt: active.LastAccessedAt.Unix(),
			Current:        active.Id == session.Id,
		}
	}
	return ctx.JSON(publicInfos)
}

func (c *SessionController) serveDeleteSession(ctx *fiber.Ctx) error {
	encodedSessionId := ctx.Params("session_id")
	if encodedSessionId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no session id")
	}
	session, ok := ctx.Locals(sessionLocalsKey).(profiles.Session)
	if !ok {
		return fiber.ErrUnauthorized
	}

	decodedSessionId, err := url.PathUnescape(encodedSessionId)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	if session.Id == decodedSessionId {
		err = c.Store.InvalidateByAuthToken(ctx.UserContext(), session.Token)
	} else {
		err = c.Store.InvalidateById(session.UserId, decodedSessionId)
	}
	if err != nil {
		if errors.Is(err, profiles.ErrSessionNotFound) {
			return fiber.ErrForbidden
		} else {
			return fmt.Errorf("session invalidate: %w", err)
		}
	}
	if c.OnInvalidated != nil {
		c.OnInvalidated(profiles.Session{Id: decodedSessionId, UserId: session.UserId})
	}
	return nil
}

func (c *SessionController) serveDeleteOtherSessions(ctx *fiber.Ctx) error {
	session, ok := ctx.Locals(sessionLocalsKey).(profiles.Session)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var others []profiles.Session
	if c.OnInvalidated != nil {
		active, err := c.Store.ActiveSessions(session.Token)
		if err != nil {
			return fmt.Errorf("active sessions: %w", err)
		}
		for _, s := range active {
			if s.Id != session.Id {
				others = append(others, s)
			}
		}
	}

	if err := c.Store.InvalidateAllExcept(session.Token); err != nil {
		return fmt.Errorf("invalidate other sessions: %w", err)
	}
	for _, s := range others {
		c.OnInvalidated(s)
	}
	return nil
}

// requestToken reads the bearer token, falling back to the session cookie.
func requestToken(ctx *fiber.Ctx) (string, error) {
	auth := ctx.Get(fiber.HeaderAuthorization)
	if auth == "" {
		if token := ctx.Cookies(SessionCookie); token != "" {
			return token, nil
		}
		return "", fiber.ErrUnauthorized
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", fiber.NewError(fiber.ErrBadRequest.Code, "invalid auth type")
	}
	return strings.TrimPrefix(auth, "Bearer "), nil
}

// AcquireSession refreshes the session behind token and loads its user.
// Unknown tokens fail with profiles.ErrSessionNotFound.
func AcquireSession(
	ctx context.Context,
	sessionStore profiles.SessionStore,
	userStore profiles.UserStore,
	token string,
	ip string,
	userAgent string,
) (profiles.Session, profiles.User, error) {
	session, err := sessionStore.AcquireAndRefresh(ctx, token, ip, userAgent)
	if err != nil {
		return profiles.Session{}, profiles.User{}, fmt.Errorf("acquire and refresh session: %w", err)
	}
	user, err := userStore.ById(ctx, session.UserId)
	if err != nil {
		return profiles.Session{}, profiles.User{}, fmt.Errorf("retrieve user by id: %w", err)
	}
	return session, user, nil
}

func RequestAuthorizer(sessionStore profiles.SessionStore, userStore profiles.UserStore) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token, err := requestToken(ctx)
		if err != nil {
			return err
		}

		session, user, err := AcquireSession(ctx.UserContext(), sessionStore, userStore, token,
			ctx.IP(), string(ctx.Request().Header.UserAgent()))
		if err != nil {
			if errors.Is(err, profiles.ErrSessionNotFound) {
				return fiber.ErrUnauthorized
			} else {
				return err
			}
		}

		requestLog(ctx).
			WithField("user_id", user.Id).
			Infoln("Authorized access.")

		ctx.Locals(sessionLocalsKey, session)
		ctx.Locals(userLocalsKey, user)
		return nil
	}
}

// SetSessionCookie hands the session token to a browser.
func SetSessionCookie(ctx *fiber.Ctx, session profiles.Session, secure bool) {
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func ClearSessionCookie(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func UserFromLocals(ctx *fiber.Ctx) (profiles.User, bool) {
	user, ok := ctx.Locals(userLocalsKey).(profiles.User)
	return user, ok
}

func SessionFromLocals(ctx *fiber.Ctx) (profiles.Session, bool) {
	session, ok := ctx.Locals(sessionLocalsKey).(profiles.Session)
	return session, ok
}
