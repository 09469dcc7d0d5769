package controller

import (
	"feature-flags-be/internal/dto"
	"feature-flags-be/internal/pkg/apperror"
	"feature-flags-be/internal/pkg/logger"
	"feature-flags-be/internal/pkg/serverutils"
	"feature-flags-be/internal/service"
	internalWS "feature-flags-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	definitionsCacheControl = "public, max-age=30, stale-while-revalidate=3600, stale-if-error=36000"
	publicModule            = "PUBLIC_API"
)

// IPublicController serves SDKs authenticated by API key in the path.
type IPublicController interface {
	RegisterRoutes(r fiber.Router)
	GetFeatures(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	RecordUsage(ctx *fiber.Ctx) error
}

type publicController struct {
	definitionsService service.IDefinitionsService
	usageService       service.IUsageService
	hub                *internalWS.Hub
	logger             logger.ILogger
}

func NewPublicController(
	definitionsService service.IDefinitionsService,
	usageService service.IUsageService,
	hub *internalWS.Hub,
	logger logger.ILogger,
) IPublicController {
	return &publicController{
		definitionsService: definitionsService,
		usageService:       usageService,
		hub:                hub,
		logger:             logger,
	}
}

func (c *publicController) RegisterRoutes(r fiber.Router) {
	r.Get("/features/:key", c.GetFeatures)
	r.Get("/features/:key/stream", c.Stream, websocket.New(func(conn *websocket.Conn) {
		topic, _ := conn.Locals("topic").(string)
		internalWS.ServeWs(c.hub, conn, topic)
	}))
	r.Post("/usage/:key", c.RecordUsage)
}

func (c *publicController) GetFeatures(ctx *fiber.Ctx) error {
	features, err := c.definitionsService.GetPublicDefinitions(ctx.UserContext(), ctx.Params("key"), ctx.Query("project"))
	if err != nil {
		message := "Failed to get features"
		if apperror.Is(err, apperror.KindUpstreamAuth) {
			message = apperror.From(err).PublicMessage()
		} else {
			c.logger.Error(publicModule, "Failed to serve definitions", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, message))
	}

	ctx.Set(fiber.HeaderCacheControl, definitionsCacheControl)
	return ctx.JSON(serverutils.SuccessResponse("features", features))
}

// Stream resolves the API key before upgrading; the websocket handler registered
// after it reads the topic from locals.
func (c *publicController) Stream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	key, err := c.definitionsService.ResolveApiKey(ctx.UserContext(), ctx.Params("key"))
	if err != nil {
		return err
	}

	ctx.Locals("topic", internalWS.Topic(key.Organization, key.Environment))
	return ctx.Next()
}

func (c *publicController) RecordUsage(ctx *fiber.Ctx) error {
	var req dto.RecordUsageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.usageService.Record(ctx.UserContext(), ctx.Params("key"), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.OkResponse())
}
