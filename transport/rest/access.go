package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/profilehub/profiles"
)

// requirePermissions passes only users explicitly allowed the permission.
func requirePermissions(permission profiles.PermissionName) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user, ok := ctx.Locals(userLocalsKey).(profiles.User)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if user.Roles.Access(permission) != profiles.AccessAllowed {
			return fiber.ErrUnauthorized
		}
		return nil
	}
}

// denyForbidden rejects users whose roles forbid the permission.
func denyForbidden(permission profiles.PermissionName) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user, ok := ctx.Locals(userLocalsKey).(profiles.User)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if user.Roles.Access(permission) == profiles.AccessForbidden {
			return fiber.ErrForbidden
		}
		return nil
	}
}

// InstallStatus serves the fiber monitor to admins.
func InstallStatus(authorizationHandler fiber.Handler, app *fiber.App) {
	app.Get("/status", combineHandlers(
		authorizationHandler,
		requirePermissions(profiles.PermissionAdminDashboard),
		monitor.New(),
	))
}
