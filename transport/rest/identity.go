package rest

import (
	"github.com/gofiber/fiber/v2"
)

type IdentityController struct{}

func (c *IdentityController) InstallTo(authorizationHandler fiber.Handler, app *fiber.App) {
	app.Get("/identity", combineHandlers(authorizationHandler, c.serveIdentity))
}

func (c *IdentityController) serveIdentity(ctx *fiber.Ctx) error {
	user, ok := UserFromLocals(ctx)
	if !ok {
		return fiber.ErrUnauthorized
	}
	return ctx.JSON(user.Identity())
}
