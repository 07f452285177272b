package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/oauth"
)

const stateCookie = "oauth_state"

type AuthController struct {
	CreateOAuthUrl      oauth.UrlFactory
	ExchangeAccessToken oauth.AccessTokenExchange
	UserInfoProvider    oauth.UserInfoProvider
	SessionStore        profiles.SessionStore
	UserStore           profiles.UserStore
	// Called after a session signs out.
	OnSignOut func(session profiles.Session)
}

func (c *AuthController) InstallTo(app *fiber.App) {
	app.Get("/auth/url", c.serveCreateOAuthUrl)
	app.Post("/auth/login", c.serveAuthenticate)
	app.Post("/auth/logout", c.logoutHandler())
}

// NewState stores a fresh oauth state in a short lived cookie.
func NewState(ctx *fiber.Ctx) string {
	state := uuid.New().String()
	ctx.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return state
}

// CheckState compares state against the cookie set by NewState.
func CheckState(ctx *fiber.Ctx, state string) error {
	expected := ctx.Cookies(stateCookie)
	if state == "" || expected == "" || state != expected {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid state")
	}
	ctx.ClearCookie(stateCookie)
	return nil
}

func (c *AuthController) serveCreateOAuthUrl(ctx *fiber.Ctx) error {
	url := c.CreateOAuthUrl(NewState(ctx))
	return ctx.JSON(map[string]string{
		"url": url,
	})
}

// Authenticate exchanges an authorization code, registers the user and opens a session.
// Client errors are returned as *fiber.Error.
func (c *AuthController) Authenticate(ctx context.Context, code string, ip string, userAgent string) (profiles.Session, error) {
	if code == "" {
		return profiles.Session{}, fiber.NewError(fiber.StatusUnauthorized, "invalid code")
	}

	exchange, err := c.ExchangeAccessToken(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidCode) {
			return profiles.Session{}, fiber.NewError(fiber.StatusUnauthorized, "invalid code")
		} else {
			return profiles.Session{}, fmt.Errorf("access token exchange: %w", err)
		}
	}

	oauthUser, err := c.UserInfoProvider()(exchange.Token())
	if err != nil {
		return profiles.Session{}, fmt.Errorf("oauth user info: %w", err)
	}
	if oauthUser.Email == "" {
		return profiles.Session{}, fiber.NewError(fiber.StatusBadRequest, "missing email")
	}

	dbCtx, cancelFunc := context.WithTimeout(ctx, time.Minute)
	user, err := c.UserStore.RegisterOAuthUser(dbCtx, oauthUser)
	cancelFunc()
	if err != nil {
		return profiles.Session{}, fmt.Errorf("user register: %w", err)
	}
	session, err := c.SessionStore.RegisterNew(ctx, user.Id, ip, userAgent)
	if err != nil {
		return profiles.Session{}, fmt.Errorf("session register new: %w", err)
	}
	return session, nil
}

func (c *AuthController) serveAuthenticate(ctx *fiber.Ctx) error {
	body := struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := CheckState(ctx, body.State); err != nil {
		return err
	}

	session, err := c.Authenticate(ctx.UserContext(), body.Code, ctx.IP(), string(ctx.Request().Header.UserAgent()))
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(map[string]interface{}{
		"id":          session.Id,
		"userId":      session.UserId,
		"accessToken": session.Token,
		"expiresAt":   session.ExpiresAt.Unix(),
	})
}

// SignOut invalidates the session. It never waits for work of the session's screen.
func (c *AuthController) SignOut(ctx context.Context, session profiles.Session) error {
	if err := c.SessionStore.InvalidateByAuthToken(ctx, session.Token); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	if c.OnSignOut != nil {
		c.OnSignOut(session)
	}
	return nil
}

func (c *AuthController) logoutHandler() fiber.Handler {
	return combineHandlers(RequestAuthorizer(c.SessionStore, c.UserStore), func(ctx *fiber.Ctx) error {
		session := ctx.Locals(sessionLocalsKey).(profiles.Session)
		return c.SignOut(ctx.UserContext(), session)
	})
}
