package definition

import (
	"dealerflow/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

type DefinitionController struct {
	Service DefinitionService
}

func NewDefinitionController(service DefinitionService) *DefinitionController {
	return &DefinitionController{Service: service}
}

// Publish godoc
// @Summary Publish a new process definition
// @Tags definitions
// @Accept json
// @Produce json
// @Param definition body ProcessDefinition true "Definition"
// @Success 201 {object} ProcessDefinition
// @Router /api/definitions [post]
func (ctrl *DefinitionController) Publish(c *fiber.Ctx) error {
	var def ProcessDefinition
	if err := c.BodyParser(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := ctrl.Service.Publish(c.UserContext(), def)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Get godoc
// @Summary Get a process definition by id
// @Tags definitions
// @Produce json
// @Param id path string true "Definition ID"
// @Success 200 {object} ProcessDefinition
// @Router /api/definitions/{id} [get]
func (ctrl *DefinitionController) Get(c *fiber.Ctx) error {
	def, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(def)
}

// List godoc
// @Summary List process definitions
// @Tags definitions
// @Produce json
// @Param process_type query string false "Filter by process type"
// @Param include_inactive query bool false "Include inactive definitions"
// @Success 200 {array} ProcessDefinition
// @Router /api/definitions [get]
func (ctrl *DefinitionController) List(c *fiber.Ctx) error {
	includeInactive := c.QueryBool("include_inactive")

	var (
		defs []ProcessDefinition
		err  error
	)
	if pt := c.Query("process_type"); pt != "" {
		defs, err = ctrl.Service.ListByType(c.UserContext(), ProcessType(pt), includeInactive)
	} else {
		defs, err = ctrl.Service.List(c.UserContext(), includeInactive)
	}
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if defs == nil {
		defs = []ProcessDefinition{}
	}
	return c.JSON(defs)
}

// GetDefault godoc
// @Summary Get the default definition for a process type
// @Tags definitions
// @Produce json
// @Param process_type path string true "Process type"
// @Success 200 {object} ProcessDefinition
// @Router /api/definitions/default/{process_type} [get]
func (ctrl *DefinitionController) GetDefault(c *fiber.Ctx) error {
	def, err := ctrl.Service.GetDefault(c.UserContext(), ProcessType(c.Params("process_type")))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(def)
}

// SetDefault godoc
// @Summary Mark a definition as the default for its process type
// @Tags definitions
// @Produce json
// @Param id path string true "Definition ID"
// @Success 200 {object} fiber.Map
// @Router /api/definitions/{id}/default [put]
func (ctrl *DefinitionController) SetDefault(c *fiber.Ctx) error {
	id := c.Params("id")
	def, err := ctrl.Service.Get(c.UserContext(), id)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	if err := ctrl.Service.SetDefault(c.UserContext(), def.ProcessType, id); err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Default updated"})
}

// Deactivate godoc
// @Summary Deactivate a process definition
// @Tags definitions
// @Produce json
// @Param id path string true "Definition ID"
// @Success 200 {object} fiber.Map
// @Router /api/definitions/{id} [delete]
func (ctrl *DefinitionController) Deactivate(c *fiber.Ctx) error {
	if err := ctrl.Service.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Definition deactivated"})
}
