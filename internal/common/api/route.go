package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature API package. Fx collects all
// implementations into the "routes" group and registers them at startup.
type Route interface {
	Setup(app *fiber.App)
}
