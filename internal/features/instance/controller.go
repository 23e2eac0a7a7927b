package instance

import (
	"strconv"

	"dealerflow/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

type InstanceController struct {
	Service InstanceService
	Engine  Engine
}

func NewInstanceController(service InstanceService, engine Engine) *InstanceController {
	return &InstanceController{Service: service, Engine: engine}
}

// Create godoc
// @Summary Create a process instance from a definition
// @Tags instances
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Create request"
// @Success 201 {object} ProcessInstance
// @Router /api/instances [post]
func (ctrl *InstanceController) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	inst, err := ctrl.Service.Create(c.UserContext(), req)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(inst)
}

// Get godoc
// @Summary Get a process instance
// @Tags instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id} [get]
func (ctrl *InstanceController) Get(c *fiber.Ctx) error {
	inst, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

// List godoc
// @Summary List process instances by subject or status
// @Tags instances
// @Produce json
// @Param subject_id query string false "Subject id"
// @Param status query string false "Process status"
// @Success 200 {array} ProcessInstance
// @Router /api/instances [get]
func (ctrl *InstanceController) List(c *fiber.Ctx) error {
	var (
		insts []ProcessInstance
		err   error
	)
	if subjectID := c.Query("subject_id"); subjectID != "" {
		insts, err = ctrl.Service.ListBySubject(c.UserContext(), subjectID)
	} else if status := c.Query("status"); status != "" {
		insts, err = ctrl.Service.ListByStatus(c.UserContext(), ProcessStatus(status))
	} else {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "subject_id or status query is required"})
	}
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if insts == nil {
		insts = []ProcessInstance{}
	}
	return c.JSON(insts)
}

// Start godoc
// @Summary Start a not-started process instance
// @Tags instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/start [post]
func (ctrl *InstanceController) Start(c *fiber.Ctx) error {
	inst, err := ctrl.Engine.Start(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

// Advance godoc
// @Summary Advance the current step of a process instance
// @Tags instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param request body AdvanceRequest true "Advance request"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/advance [post]
func (ctrl *InstanceController) Advance(c *fiber.Ctx) error {
	var req AdvanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	inst, err := ctrl.Engine.Advance(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel a process instance
// @Tags instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/cancel [post]
func (ctrl *InstanceController) Cancel(c *fiber.Ctx) error {
	var body reasonBody
	_ = c.BodyParser(&body)

	inst, err := ctrl.Engine.Cancel(c.UserContext(), c.Params("id"), body.Reason)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

// Hold godoc
// @Summary Put a process instance on hold
// @Tags instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/hold [post]
func (ctrl *InstanceController) Hold(c *fiber.Ctx) error {
	var body reasonBody
	_ = c.BodyParser(&body)

	inst, err := ctrl.Engine.Hold(c.UserContext(), c.Params("id"), body.Reason)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

// Resume godoc
// @Summary Resume a held process instance
// @Tags instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/resume [post]
func (ctrl *InstanceController) Resume(c *fiber.Ctx) error {
	inst, err := ctrl.Engine.Resume(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}

type assignBody struct {
	Assignee string `json:"assignee"`
}

// AssignStep godoc
// @Summary Assign a step of a process instance
// @Tags instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param seq path int true "Step sequence number"
// @Param request body assignBody true "Assignee"
// @Success 200 {object} ProcessInstance
// @Router /api/instances/{id}/steps/{seq}/assign [put]
func (ctrl *InstanceController) AssignStep(c *fiber.Ctx) error {
	seq, err := strconv.Atoi(c.Params("seq"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid sequence number"})
	}

	var body assignBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Assignee == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Assignee is required"})
	}

	inst, err := ctrl.Engine.AssignStep(c.UserContext(), c.Params("id"), seq, body.Assignee)
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(inst)
}
