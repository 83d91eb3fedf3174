package controller

import (
	"subguard-be/internal/dto"
	"subguard-be/internal/pkg/serverutils"
	"subguard-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDetectionController interface {
	RegisterRoutes(r fiber.Router)
	RunDetection(ctx *fiber.Ctx) error
	ListSubscriptions(ctx *fiber.Ctx) error
}

type detectionController struct {
	detectionService service.IDetectionService
}

func NewDetectionController(detectionService service.IDetectionService) IDetectionController {
	return &detectionController{
		detectionService: detectionService,
	}
}

func (c *detectionController) RegisterRoutes(r fiber.Router) {
	d := r.Group("/detection")
	d.Use(serverutils.JwtMiddleware)
	d.Post("run", c.RunDetection)

	s := r.Group("/subscriptions")
	s.Use(serverutils.JwtMiddleware)
	s.Get("", c.ListSubscriptions)
}

func (c *detectionController) RunDetection(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.RunDetectionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	res, err := c.detectionService.RunDetection(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success run detection", res))
}

func (c *detectionController) ListSubscriptions(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.detectionService.ListSubscriptions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list subscriptions", res))
}
