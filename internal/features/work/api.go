package work

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WorkApi struct {
	Controller *WorkController
	Config     *config.Config
}

func NewWorkApi(controller *WorkController, config *config.Config) *WorkApi {
	return &WorkApi{
		Controller: controller,
		Config:     config,
	}
}

func (api *WorkApi) Setup(app *fiber.App) {
	group := app.Group("/api/work", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Get("/next", api.Controller.NextWork)
	group.Get("/export", api.Controller.Export)
}
