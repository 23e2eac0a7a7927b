package definition

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DefinitionApi struct {
	Controller *DefinitionController
	Config     *config.Config
}

func NewDefinitionApi(controller *DefinitionController, config *config.Config) *DefinitionApi {
	return &DefinitionApi{
		Controller: controller,
		Config:     config,
	}
}

func (api *DefinitionApi) Setup(app *fiber.App) {
	group := app.Group("/api/definitions", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Post("/", api.Controller.Publish)
	group.Get("/", api.Controller.List)
	group.Get("/default/:process_type", api.Controller.GetDefault)
	group.Get("/:id", api.Controller.Get)
	group.Put("/:id/default", api.Controller.SetDefault)
	group.Delete("/:id", api.Controller.Deactivate)
}
