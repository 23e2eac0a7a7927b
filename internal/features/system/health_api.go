package system

import (
	"context"
	"time"

	"dealerflow/internal/database"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type HealthApi struct {
	Mongodb *database.MongodbDB
}

func NewHealthApi(mongodb *database.MongodbDB) *HealthApi {
	return &HealthApi{Mongodb: mongodb}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/healthz", h.health)
}

// health godoc
// @Summary      Liveness and database check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /healthz [get]
func (h *HealthApi) health(ctx *fiber.Ctx) error {
	dbStatus := "ok"
	pingCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.Mongodb.DB.RunCommand(pingCtx, bson.M{"ping": 1}).Err(); err != nil {
		dbStatus = "unreachable"
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return ctx.Status(status).JSON(fiber.Map{
		"status":   "up",
		"database": dbStatus,
		"time":     time.Now().UTC(),
	})
}
