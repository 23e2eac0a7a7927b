package escalation

import (
	"time"

	"dealerflow/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

type EscalationController struct {
	Service EscalationService
}

func NewEscalationController(service EscalationService) *EscalationController {
	return &EscalationController{Service: service}
}

// Scan godoc
// @Summary List overdue steps across open processes
// @Tags escalations
// @Produce json
// @Param tier query string false "Only signals at this tier"
// @Success 200 {array} Signal
// @Router /api/escalations [get]
func (ctrl *EscalationController) Scan(c *fiber.Ctx) error {
	signals, err := ctrl.Service.Scan(c.UserContext(), time.Now())
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	if tier := c.Query("tier"); tier != "" {
		filtered := make([]Signal, 0, len(signals))
		for _, sig := range signals {
			if string(sig.Tier) == tier {
				filtered = append(filtered, sig)
			}
		}
		signals = filtered
	}
	if signals == nil {
		signals = []Signal{}
	}
	return c.JSON(signals)
}

// Run godoc
// @Summary Trigger an escalation pass immediately
// @Tags escalations
// @Produce json
// @Success 200 {object} fiber.Map
// @Router /api/escalations/run [post]
func (ctrl *EscalationController) Run(c *fiber.Ctx) error {
	if err := ctrl.Service.ProcessEscalations(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Escalation pass finished"})
}
