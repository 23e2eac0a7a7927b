package instance

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type InstanceApi struct {
	Controller *InstanceController
	Config     *config.Config
}

func NewInstanceApi(controller *InstanceController, config *config.Config) *InstanceApi {
	return &InstanceApi{
		Controller: controller,
		Config:     config,
	}
}

func (api *InstanceApi) Setup(app *fiber.App) {
	group := app.Group("/api/instances", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.Controller.Create)
	group.Get("/", api.Controller.List)
	group.Get("/:id", api.Controller.Get)
	group.Post("/:id/start", api.Controller.Start)
	group.Post("/:id/advance", api.Controller.Advance)
	group.Post("/:id/cancel", api.Controller.Cancel)
	group.Post("/:id/hold", api.Controller.Hold)
	group.Post("/:id/resume", api.Controller.Resume)
	group.Put("/:id/steps/:seq/assign", api.Controller.AssignStep)
}
