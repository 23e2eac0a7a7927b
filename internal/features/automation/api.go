package automation

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type HookApi struct {
	Controller *HookController
	Config     *config.Config
}

func NewHookApi(controller *HookController, config *config.Config) *HookApi {
	return &HookApi{
		Controller: controller,
		Config:     config,
	}
}

func (api *HookApi) Setup(app *fiber.App) {
	group := app.Group("/api/hooks", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.Controller.Create)
	group.Get("/", api.Controller.List)
	group.Delete("/:id", api.Controller.Delete)
}
