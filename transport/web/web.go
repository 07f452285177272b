package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/account"
	"github.com/profilehub/profiles/transport/rest"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = map[string]*template.Template{
	"account": parsePage("account.html"),
	"login":   parsePage("login.html"),
	"error":   parsePage("error.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFiles, "templates/layout.html", "templates/"+name))
}

type pageView struct {
	Title string
	Alert string
}

type accountView struct {
	pageView
	account.ScreenView
	ImageSrc template.URL
}

type errorView struct {
	pageView
	Code    int
	Message string
}

// Controller serves the account page to browsers. Sessions travel in the
// rest.SessionCookie cookie.
type Controller struct {
	Auth         *rest.AuthController
	SessionStore profiles.SessionStore
	UserStore    profiles.UserStore
	Backend      profiles.Backend
	Screens      *account.Screens
	// Marks the session cookie secure.
	SecureCookies bool
}

func (c *Controller) InstallTo(app *fiber.App) {
	app.Get("/", c.serveAccount)
	app.Post("/account", c.serveSubmit)
	app.Post("/account/avatar", c.serveAvatarUpload)
	app.Post("/logout", c.serveLogout)
	app.Get("/login", c.serveLogin)
	app.Get("/auth/login", c.serveOAuthRedirect)
	app.Get("/auth/callback", c.serveOAuthCallback)
}

func render(ctx *fiber.Ctx, status int, page string, view interface{}) error {
	ctx.Status(status)
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if err := templates[page].ExecuteTemplate(ctx, page+".html", view); err != nil {
		return fmt.Errorf("execute %s template: %w", page, err)
	}
	return nil
}

// ErrorHandler renders errors as html pages.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := fiber.ErrInternalServerError.Message
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
		message = fe.Message
	} else {
		rest.RequestLog(ctx).WithError(err).Errorln("Internal server error.")
	}
	return render(ctx, code, "error", errorView{
		pageView: pageView{Title: "Error"},
		Code:     code,
		Message:  message,
	})
}

// authenticate resolves the session cookie. ok is false for anonymous visitors.
func (c *Controller) authenticate(ctx *fiber.Ctx) (profiles.Session, profiles.User, bool, error) {
	token := ctx.Cookies(rest.SessionCookie)
	if token == "" {
		return profiles.Session{}, profiles.User{}, false, nil
	}
	session, user, err := rest.AcquireSession(ctx.UserContext(), c.SessionStore, c.UserStore, token,
		ctx.IP(), string(ctx.Request().Header.UserAgent()))
	if err != nil {
		if errors.Is(err, profiles.ErrSessionNotFound) || errors.Is(err, profiles.ErrUserNotFound) {
			c.Screens.DropByToken(token)
			rest.ClearSessionCookie(ctx)
			return profiles.Session{}, profiles.User{}, false, nil
		}
		return profiles.Session{}, profiles.User{}, false, err
	}
	return session, user, true, nil
}

// screen returns the account screen of the session, loading it when new.
func (c *Controller) screen(session profiles.Session, user profiles.User) (*account.Screen, bool) {
	identity := user.Identity()
	return c.Screens.Acquire(session, func() *account.Screen {
		return account.NewScreen(c.Backend, func(ctx context.Context) (profiles.Identity, error) {
			return identity, nil
		})
	})
}

func (c *Controller) load(ctx *fiber.Ctx, screen *account.Screen) {
	if err := screen.Form.Load(ctx.UserContext()); err != nil {
		rest.RequestLog(ctx).WithError(err).Warnln("Could not load profile.")
	}
}

func (c *Controller) renderAccount(ctx *fiber.Ctx, status int, screen *account.Screen, alert string) error {
	screenView := screen.Render(ctx.UserContext())
	return render(ctx, status, "account", accountView{
		pageView:   pageView{Title: "Account", Alert: alert},
		ScreenView: screenView,
		// data uri built from a sniffed image content type
		ImageSrc: template.URL(screenView.Avatar.ImageSrc),
	})
}

func (c *Controller) serveAccount(ctx *fiber.Ctx) error {
	session, user, ok, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Redirect("/login", fiber.StatusSeeOther)
	}

	screen, _ := c.screen(session, user)
	c.load(ctx, screen)
	return c.renderAccount(ctx, fiber.StatusOK, screen, "")
}

func (c *Controller) serveSubmit(ctx *fiber.Ctx) error {
	session, user, ok, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Redirect("/login", fiber.StatusSeeOther)
	}
	if user.Roles.Access(profiles.PermissionProfileEdit) == profiles.AccessForbidden {
		return fiber.ErrForbidden
	}

	screen, created := c.screen(session, user)
	if created {
		c.load(ctx, screen)
	}

	for _, field := range []account.Field{account.FieldUsername, account.FieldWebsite} {
		if err := screen.Form.Edit(field, ctx.FormValue(string(field))); err != nil {
			return c.renderAccount(ctx, fiber.StatusConflict, screen, err.Error())
		}
	}

	if _, err := screen.Form.Submit(ctx.UserContext()); err != nil {
		var validationErr *profiles.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return c.renderAccount(ctx, fiber.StatusBadRequest, screen, validationErr.Error())
		case errors.Is(err, account.ErrNoIdentity):
			return c.renderAccount(ctx, fiber.StatusConflict, screen, err.Error())
		default:
			rest.RequestLog(ctx).WithError(err).Errorln("Could not update profile.")
			return c.renderAccount(ctx, fiber.StatusInternalServerError, screen, "Error updating the data!")
		}
	}
	return c.renderAccount(ctx, fiber.StatusOK, screen, "")
}

func (c *Controller) serveAvatarUpload(ctx *fiber.Ctx) error {
	session, user, ok, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Redirect("/login", fiber.StatusSeeOther)
	}
	if user.Roles.Access(profiles.PermissionAvatarUpload) == profiles.AccessForbidden {
		return fiber.ErrForbidden
	}

	screen, created := c.screen(session, user)
	if created {
		c.load(ctx, screen)
	}

	var files []*multipart.FileHeader
	if form, err := ctx.MultipartForm(); err == nil {
		files = form.File["avatar"]
	}

	if _, err := screen.Avatar.Upload(ctx.UserContext(), files); err != nil {
		switch {
		case errors.Is(err, account.ErrNoFileSelected),
			errors.Is(err, account.ErrTooManyFiles),
			errors.Is(err, account.ErrNotAnImage),
			errors.Is(err, account.ErrFileTooLarge),
			errors.Is(err, account.ErrUploadInProgress):
			return c.renderAccount(ctx, fiber.StatusBadRequest, screen, err.Error())
		default:
			rest.RequestLog(ctx).WithError(err).Errorln("Could not upload avatar.")
			return c.renderAccount(ctx, fiber.StatusInternalServerError, screen, "Error uploading avatar!")
		}
	}
	return c.renderAccount(ctx, fiber.StatusOK, screen, "")
}

// serveLogout signs out without touching the screen state, so it never
// waits for an in-flight submit or upload.
func (c *Controller) serveLogout(ctx *fiber.Ctx) error {
	token := ctx.Cookies(rest.SessionCookie)
	if token != "" {
		session, err := c.SessionStore.ByToken(token)
		switch {
		case err == nil:
			if err := c.Auth.SignOut(ctx.UserContext(), session); err != nil {
				return err
			}
			c.Screens.Drop(session.Id)
		case errors.Is(err, profiles.ErrSessionNotFound):
		default:
			return fmt.Errorf("session by token: %w", err)
		}
	}
	rest.ClearSessionCookie(ctx)
	return ctx.Redirect("/login", fiber.StatusSeeOther)
}

func (c *Controller) serveLogin(ctx *fiber.Ctx) error {
	_, _, ok, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if ok {
		return ctx.Redirect("/", fiber.StatusSeeOther)
	}
	return render(ctx, fiber.StatusOK, "login", pageView{Title: "Sign in", Alert: ctx.Query("error")})
}

func (c *Controller) serveOAuthRedirect(ctx *fiber.Ctx) error {
	return ctx.Redirect(c.Auth.CreateOAuthUrl(rest.NewState(ctx)), fiber.StatusSeeOther)
}

func (c *Controller) serveOAuthCallback(ctx *fiber.Ctx) error {
	if providerErr := ctx.Query("error"); providerErr != "" {
		return render(ctx, fiber.StatusUnauthorized, "login", pageView{Title: "Sign in", Alert: providerErr})
	}
	if err := rest.CheckState(ctx, ctx.Query("state")); err != nil {
		return render(ctx, fiber.StatusUnauthorized, "login", pageView{Title: "Sign in", Alert: err.Error()})
	}

	session, err := c.Auth.Authenticate(ctx.UserContext(), ctx.Query("code"), ctx.IP(),
		string(ctx.Request().Header.UserAgent()))
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return render(ctx, fe.Code, "login", pageView{Title: "Sign in", Alert: fe.Message})
		}
		return err
	}
	rest.SetSessionCookie(ctx, session, c.SecureCookies)
	return ctx.Redirect("/", fiber.StatusSeeOther)
}
