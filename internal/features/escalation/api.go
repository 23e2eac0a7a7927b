package escalation

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type EscalationApi struct {
	Controller *EscalationController
	Config     *config.Config
}

func NewEscalationApi(controller *EscalationController, config *config.Config) *EscalationApi {
	return &EscalationApi{
		Controller: controller,
		Config:     config,
	}
}

func (api *EscalationApi) Setup(app *fiber.App) {
	group := app.Group("/api/escalations", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Get("/", api.Controller.Scan)
	group.Post("/run", api.Controller.Run)
}
