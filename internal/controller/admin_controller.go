package controller

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"ai-support-router-be/internal/configstore"
	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/internal/pkg/serverutils"
	ws "ai-support-router-be/internal/websocket"
	"ai-support-router-be/pkg/events"
	"ai-support-router-be/pkg/index"
	natsbus "ai-support-router-be/pkg/nats"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)

	GetTools(ctx *fiber.Ctx) error
	UpdateTools(ctx *fiber.Ctx) error
	GetContent(ctx *fiber.Ctx) error
	UpdateContent(ctx *fiber.Ctx) error
	GetPlanner(ctx *fiber.Ctx) error
	UpdatePlanner(ctx *fiber.Ctx) error
	GetUser(ctx *fiber.Ctx) error
	UpdateUser(ctx *fiber.Ctx) error

	Reindex(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

type adminController struct {
	store    *configstore.Store
	searcher index.Searcher
	hub      *ws.Hub
	natsPub  *natsbus.Publisher
	log      logger.ILogger
}

func NewAdminController(store *configstore.Store, searcher index.Searcher, hub *ws.Hub, natsPub *natsbus.Publisher, log logger.ILogger) IAdminController {
	return &adminController{
		store:    store,
		searcher: searcher,
		hub:      hub,
		natsPub:  natsPub,
		log:      log,
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")

	// Catalog resources
	h.Get("/tools", c.GetTools)
	h.Put("/tools", c.UpdateTools)
	h.Get("/content", c.GetContent)
	h.Put("/content", c.UpdateContent)
	h.Get("/planner", c.GetPlanner)
	h.Put("/planner", c.UpdatePlanner)
	h.Get("/user", c.GetUser)
	h.Put("/user", c.UpdateUser)

	// Index maintenance
	h.Post("/reindex", c.Reindex)

	// Logs
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogDetail)

	// Live turn telemetry
	h.Use("/telemetry/ws", upgradeRequired)
	h.Get("/telemetry/ws", websocket.New(c.hub.Serve))
}

func (c *adminController) GetTools(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse(c.store.LoadTools()))
}

func (c *adminController) UpdateTools(ctx *fiber.Ctx) error {
	var tools []model.ToolDefinition
	if err := ctx.BodyParser(&tools); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid tools payload"))
	}
	if err := c.store.SaveTools(tools); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(serverutils.ErrorResponse(422, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(tools))
}

func (c *adminController) GetContent(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse(c.store.LoadContent()))
}

// UpdateContent saves the new catalog and rebuilds every index partition so
// retrieval reflects the edit immediately.
func (c *adminController) UpdateContent(ctx *fiber.Ctx) error {
	var entries []model.ContentEntry
	if err := ctx.BodyParser(&entries); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid content payload"))
	}
	if err := c.store.SaveContent(entries); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(serverutils.ErrorResponse(422, err.Error()))
	}
	if err := c.searcher.RebuildAll(ctx.Context(), entries); err != nil {
		c.log.Error("AdminController", "rebuild after content update failed", map[string]interface{}{"error": err.Error()})
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "content saved but reindex failed"))
	}
	c.publishRebuilt(entries)
	return ctx.JSON(serverutils.SuccessResponse(entries))
}

func (c *adminController) GetPlanner(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse(c.store.LoadPlanner()))
}

func (c *adminController) UpdatePlanner(ctx *fiber.Ctx) error {
	var settings model.PlannerSettings
	if err := ctx.BodyParser(&settings); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid planner payload"))
	}
	if err := c.store.SavePlanner(settings); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(serverutils.ErrorResponse(422, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(settings))
}

func (c *adminController) GetUser(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse(c.store.LoadUser()))
}

func (c *adminController) UpdateUser(ctx *fiber.Ctx) error {
	var profile model.UserProfile
	if err := ctx.BodyParser(&profile); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid user payload"))
	}
	if err := c.store.SaveUser(profile); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(serverutils.ErrorResponse(422, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(profile))
}

func (c *adminController) Reindex(ctx *fiber.Ctx) error {
	entries := c.store.LoadContent()
	if err := c.searcher.RebuildAll(context.Background(), entries); err != nil {
		c.log.Error("AdminController", "reindex failed", map[string]interface{}{"error": err.Error()})
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "reindex failed"))
	}
	c.publishRebuilt(entries)
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"entries": len(entries)}))
}

// publishRebuilt announces one rebuild event per touched index on the
// telemetry stream for the audit trail.
func (c *adminController) publishRebuilt(entries []model.ContentEntry) {
	if c.natsPub == nil {
		return
	}
	counts := make(map[string]int)
	for _, e := range entries {
		if e.IndexName != "" {
			counts[e.IndexName]++
		}
	}
	for name, n := range counts {
		if err := c.natsPub.Publish(context.Background(), events.NewIndexRebuilt(name, n)); err != nil {
			c.log.Warn("AdminController", "rebuild event publish failed", map[string]interface{}{
				"index_name": name,
				"error":      err.Error(),
			})
		}
	}
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	logs, err := c.log.GetLogs(level, limit, offset)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "failed to read logs"))
	}
	return ctx.JSON(serverutils.SuccessResponse(logs))
}

func (c *adminController) GetLogDetail(ctx *fiber.Ctx) error {
	entry, err := c.log.GetLogById(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "log not found"))
	}
	return ctx.JSON(serverutils.SuccessResponse(entry))
}
