package controller

import (
	"time"

	"subguard-be/internal/pkg/serverutils"
	"subguard-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	Overview(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type analyticsController struct {
	analyticsService service.IAnalyticsService
}

func NewAnalyticsController(analyticsService service.IAnalyticsService) IAnalyticsController {
	return &analyticsController{
		analyticsService: analyticsService,
	}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analytics")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.Overview)
	h.Get("health", c.Health)
}

func (c *analyticsController) Overview(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	// ?timeframe=720h, default 30 days
	timeframe := 30 * 24 * time.Hour
	if raw := ctx.Query("timeframe", ""); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid timeframe, expected a Go duration like 720h"))
		}
		timeframe = parsed
	}

	res, err := c.analyticsService.Overview(ctx.Context(), userId, timeframe)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get analytics", res))
}

func (c *analyticsController) Health(ctx *fiber.Ctx) error {
	res, err := c.analyticsService.Health(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get system health", res))
}
