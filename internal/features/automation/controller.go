package automation

import (
	"dealerflow/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

type HookController struct {
	Service PolicyService
}

func NewHookController(service PolicyService) *HookController {
	return &HookController{Service: service}
}

// Create godoc
// @Summary Create a step hook
// @Tags hooks
// @Accept json
// @Produce json
// @Param hook body StepHook true "Hook"
// @Success 201 {object} StepHook
// @Router /api/hooks [post]
func (ctrl *HookController) Create(c *fiber.Ctx) error {
	var hook StepHook
	if err := c.BodyParser(&hook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := ctrl.Service.CreateHook(c.UserContext(), hook)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// List godoc
// @Summary List step hooks
// @Tags hooks
// @Produce json
// @Success 200 {array} StepHook
// @Router /api/hooks [get]
func (ctrl *HookController) List(c *fiber.Ctx) error {
	hooks, err := ctrl.Service.ListHooks(c.UserContext())
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if hooks == nil {
		hooks = []StepHook{}
	}
	return c.JSON(hooks)
}

// Delete godoc
// @Summary Delete a step hook
// @Tags hooks
// @Produce json
// @Param id path string true "Hook ID"
// @Success 200 {object} fiber.Map
// @Router /api/hooks/{id} [delete]
func (ctrl *HookController) Delete(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteHook(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Hook deleted"})
}
