package notification

import (
	"dealerflow/internal/config"
	"dealerflow/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	Controller *NotificationController
	Hub        *Hub
	Config     *config.Config
}

func NewNotificationApi(controller *NotificationController, hub *Hub, config *config.Config) *NotificationApi {
	return &NotificationApi{
		Controller: controller,
		Hub:        hub,
		Config:     config,
	}
}

func (api *NotificationApi) Setup(app *fiber.App) {
	group := app.Group("/api/notifications", middleware.AuthMiddleware(api.Config.SkipAuth))

	group.Get("/", api.Controller.List)
	group.Get("/unread-count", api.Controller.GetUnreadCount)
	group.Put("/:id/read", api.Controller.MarkAsRead)
	group.Put("/read-all", api.Controller.MarkAllAsRead)

	app.Get("/api/ws", websocket.New(api.Hub.HandleConnection))
}
