package controller

import (
	"subguard-be/internal/dto"
	"subguard-be/internal/pkg/serverutils"
	"subguard-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICancellationController interface {
	RegisterRoutes(r fiber.Router)
	Initiate(ctx *fiber.Ctx) error
	GetStatus(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	CancelRequest(ctx *fiber.Ctx) error
	ConfirmManual(ctx *fiber.Ctx) error
	Eligibility(ctx *fiber.Ctx) error
}

type cancellationController struct {
	cancellationService service.ICancellationService
}

func NewCancellationController(cancellationService service.ICancellationService) ICancellationController {
	return &cancellationController{
		cancellationService: cancellationService,
	}
}

func (c *cancellationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/cancellation")
	h.Use(serverutils.JwtMiddleware)
	h.Post("initiate", c.Initiate)
	h.Get("requests/:id", c.GetStatus)
	h.Post("requests/:id/retry", c.Retry)
	h.Post("requests/:id/cancel", c.CancelRequest)
	h.Post("requests/:id/confirm", c.ConfirmManual)
	h.Get("eligibility/:subscriptionId", c.Eligibility)
}

func (c *cancellationController) Initiate(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.InitiateCancellationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.cancellationService.Initiate(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Cancellation initiated", res))
}

func (c *cancellationController) GetStatus(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request id"))
	}

	res, err := c.cancellationService.GetStatus(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get cancellation status", res))
}

func (c *cancellationController) Retry(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request id"))
	}

	var req dto.RetryCancellationRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.cancellationService.Retry(ctx.Context(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Cancellation retry initiated", res))
}

func (c *cancellationController) CancelRequest(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request id"))
	}

	var req dto.CancelRequestRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	res, err := c.cancellationService.CancelRequest(ctx.Context(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Cancellation request abandoned", res))
}

func (c *cancellationController) ConfirmManual(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request id"))
	}

	var req dto.ConfirmManualRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.cancellationService.ConfirmManual(ctx.Context(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Manual outcome recorded", res))
}

func (c *cancellationController) Eligibility(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	subscriptionId, err := uuid.Parse(ctx.Params("subscriptionId"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid subscription id"))
	}

	res, err := c.cancellationService.Eligibility(ctx.Context(), userId, subscriptionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success check eligibility", res))
}
