package work

import (
	"strconv"

	"dealerflow/internal/common/errs"
	"dealerflow/internal/features/definition"

	"github.com/gofiber/fiber/v2"
)

type WorkController struct {
	Service WorkService
}

func NewWorkController(service WorkService) *WorkController {
	return &WorkController{Service: service}
}

func filterFromQuery(c *fiber.Ctx) Filter {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	return Filter{
		ResponsibleParty: c.Query("responsible_party"),
		ProcessType:      definition.ProcessType(c.Query("process_type")),
		AssignedTo:       c.Query("assigned_to"),
		Limit:            limit,
	}
}

// NextWork godoc
// @Summary List the work queue in priority order
// @Tags work
// @Produce json
// @Param responsible_party query string false "Filter by responsible party"
// @Param process_type query string false "Filter by process type"
// @Param assigned_to query string false "Filter by assignee"
// @Param limit query int false "Max items"
// @Success 200 {array} WorkItem
// @Router /api/work/next [get]
func (ctrl *WorkController) NextWork(c *fiber.Ctx) error {
	items, err := ctrl.Service.NextWork(c.UserContext(), filterFromQuery(c))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if items == nil {
		items = []WorkItem{}
	}
	return c.JSON(items)
}

// Export godoc
// @Summary Export the work queue as XLSX
// @Tags work
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/work/export [get]
func (ctrl *WorkController) Export(c *fiber.Ctx) error {
	data, err := ctrl.Service.ExportXLSX(c.UserContext(), filterFromQuery(c))
	if err != nil {
		return c.Status(errs.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="work_queue.xlsx"`)
	return c.Send(data)
}
