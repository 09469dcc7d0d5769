package controller

import (
	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/pkg/serverutils"
	"feature-flags-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IFeatureController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	AddRule(ctx *fiber.Ctx) error
	EditRule(ctx *fiber.Ctx) error
	DeleteRule(ctx *fiber.Ctx) error
	MoveRule(ctx *fiber.Ctx) error
	Toggle(ctx *fiber.Ctx) error
	Usage(ctx *fiber.Ctx) error
}

type featureController struct {
	featureService service.IFeatureService
	usageService   service.IUsageService
}

func NewFeatureController(featureService service.IFeatureService, usageService service.IUsageService) IFeatureController {
	return &featureController{
		featureService: featureService,
		usageService:   usageService,
	}
}

func (c *featureController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/feature")
	h.Use(auth)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
	h.Post(":id/rule", c.AddRule)
	h.Put(":id/rule", c.EditRule)
	h.Delete(":id/rule", c.DeleteRule)
	h.Post(":id/reorder", c.MoveRule)
	h.Post(":id/toggle", c.Toggle)
	h.Get(":id/usage", c.Usage)
}

func (c *featureController) List(ctx *fiber.Ctx) error {
	orgId := serverutils.OrganizationID(ctx)

	res, err := c.featureService.List(ctx.UserContext(), orgId, ctx.Query("project"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("features", res))
}

func (c *featureController) Create(ctx *fiber.Ctx) error {
	orgId := serverutils.OrganizationID(ctx)

	var req dto.CreateFeatureRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.featureService.Create(ctx.UserContext(), orgId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("feature", res))
}

func (c *featureController) Show(ctx *fiber.Ctx) error {
	orgId := serverutils.OrganizationID(ctx)

	res, err := c.featureService.Get(ctx.UserContext(), orgId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"status":      fiber.StatusOK,
		"feature":     res.Feature,
		"experiments": res.Experiments,
	})
}

func (c *featureController) Update(ctx *fiber.Ctx) error {
	orgId := serverutils.OrganizationID(ctx)

	var req dto.UpdateFeatureRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.featureService.Update(ctx.UserContext(), orgId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("feature", res))
}

func (c *featureController) Delete(ctx *fiber.Ctx) error {
	orgId := serverutils.OrganizationID(ctx)

	if err := c.featureService.Delete(ctx.UserContext(), orgId, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

func (c *featureController) AddRule(ctx *fiber.Ctx) error {
	var req dto.AddRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.featureService.AddRule(ctx.UserContext(), serverutils.OrganizationID(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

func (c *featureController) EditRule(ctx *fiber.Ctx) error {
	var req dto.EditRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.featureService.EditRule(ctx.UserContext(), serverutils.OrganizationID(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

func (c *featureController) DeleteRule(ctx *fiber.Ctx) error {
	var req dto.DeleteRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.featureService.DeleteRule(ctx.UserContext(), serverutils.OrganizationID(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

func (c *featureController) MoveRule(ctx *fiber.Ctx) error {
	var req dto.MoveRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.featureService.MoveRule(ctx.UserContext(), serverutils.OrganizationID(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

func (c *featureController) Toggle(ctx *fiber.Ctx) error {
	var req dto.ToggleEnvironmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.featureService.ToggleEnvironment(ctx.UserContext(), serverutils.OrganizationID(ctx), ctx.Params("id"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}

// Usage returns the realtime window of the whole organization; the id only scopes the route.
func (c *featureController) Usage(ctx *fiber.Ctx) error {
	res, err := c.usageService.GetRealtimeUsage(ctx.UserContext(), serverutils.OrganizationID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("usage", res))
}
