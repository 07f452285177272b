package rest

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/account"
)

type ProfileController struct {
	Backend profiles.Backend
}

func (c *ProfileController) InstallTo(authorizationHandler fiber.Handler, app *fiber.App) {
	app.Get("/profile", combineHandlers(authorizationHandler, c.serveOwnProfile))
	app.Put("/profile", combineHandlers(authorizationHandler,
		denyForbidden(profiles.PermissionProfileEdit), c.serveUpdateProfile))
	app.Post("/profile/avatar", combineHandlers(authorizationHandler,
		denyForbidden(profiles.PermissionAvatarUpload), c.serveUploadAvatar))
	app.Get("/profiles/:user_id", c.serveProfile)
	app.Get("/avatars/*", c.serveAvatar)
}

type ProfileResponse struct {
	Id        profiles.UserId `json:"id"`
	Username  string          `json:"username"`
	Website   string          `json:"website"`
	AvatarUrl string          `json:"avatarUrl"`
	UpdatedAt int64           `json:"updatedAt"`
}

func profileResponse(profile profiles.Profile) ProfileResponse {
	response := ProfileResponse{
		Id:        profile.Id,
		Username:  profile.Username,
		Website:   profile.Website,
		AvatarUrl: profile.AvatarUrl,
	}
	if !profile.UpdatedAt.IsZero() {
		response.UpdatedAt = profile.UpdatedAt.Unix()
	}
	return response
}

// ownProfile returns the stored profile of the user, or an empty one keyed by
// the user id when nothing was stored yet.
func (c *ProfileController) ownProfile(ctx *fiber.Ctx, user profiles.User) (profiles.Profile, error) {
	profile, err := c.Backend.FetchProfile(ctx.UserContext(), user.Id)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			return profiles.Profile{Id: user.Id}, nil
		}
		return profiles.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

func (c *ProfileController) serveOwnProfile(ctx *fiber.Ctx) error {
	user, ok := UserFromLocals(ctx)
	if !ok {
		return fiber.ErrUnauthorized
	}
	profile, err := c.ownProfile(ctx, user)
	if err != nil {
		return err
	}
	return ctx.JSON(profileResponse(profile))
}

func (c *ProfileController) serveUpdateProfile(ctx *fiber.Ctx) error {
	user, ok := UserFromLocals(ctx)
	if !ok {
		return fiber.ErrUnauthorized
	}
	body := struct {
		Username string `json:"username"`
		Website  string `json:"website"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	profile, err := c.ownProfile(ctx, user)
	if err != nil {
		return err
	}
	profile.Username = body.Username
	profile.Website = body.Website
	profile = account.NormalizeProfile(profile)
	if err := account.ValidateProfile(profile); err != nil {
		var validationErr *profiles.ValidationError
		if errors.As(err, &validationErr) {
			return fiber.NewError(fiber.StatusBadRequest, validationErr.Error())
		}
		return err
	}

	saved, err := c.Backend.UpsertProfile(ctx.UserContext(), profile)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return ctx.JSON(profileResponse(saved))
}

func (c *ProfileController) serveUploadAvatar(ctx *fiber.Ctx) error {
	user, ok := UserFromLocals(ctx)
	if !ok {
		return fiber.ErrUnauthorized
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, account.ErrNoFileSelected.Error())
	}

	path, err := account.UploadAvatar(ctx.UserContext(), c.Backend, form.File["avatar"])
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNoFileSelected),
			errors.Is(err, account.ErrTooManyFiles),
			errors.Is(err, account.ErrNotAnImage):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, account.ErrFileTooLarge):
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
		default:
			return err
		}
	}

	profile, err := c.ownProfile(ctx, user)
	if err != nil {
		return err
	}
	profile.AvatarUrl = path
	saved, err := c.Backend.UpsertProfile(ctx.UserContext(), profile)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(profileResponse(saved))
}

func (c *ProfileController) serveProfile(ctx *fiber.Ctx) error {
	userId := ctx.Params("user_id")
	if userId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no user id")
	}
	// user ids are uuids, anything else cannot name a profile
	if _, err := uuid.Parse(userId); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "profile not found")
	}

	profile, err := c.Backend.FetchProfile(ctx.UserContext(), profiles.UserId(userId))
	if err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "profile not found")
		} else {
			return fmt.Errorf("get profile by user id: %w", err)
		}
	}
	return ctx.JSON(profileResponse(profile))
}

func (c *ProfileController) serveAvatar(ctx *fiber.Ctx) error {
	path, err := url.PathUnescape(ctx.Params("*"))
	if err != nil || path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid path")
	}

	object, err := c.Backend.Download(ctx.UserContext(), path)
	if err != nil {
		if errors.Is(err, profiles.ErrObjectNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "avatar not found")
		} else {
			return fmt.Errorf("download avatar: %w", err)
		}
	}
	ctx.Set(fiber.HeaderContentType, object.ContentType)
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	ctx.Set("X-Content-Type-Options", "nosniff")
	ctx.Set("Content-Security-Policy", "default-src 'none'; sandbox")
	return ctx.Send(object.Data)
}
