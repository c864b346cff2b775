package detectionHandler

import (
	detectionService "VSLBackend/internal/api/detection/service"
	"VSLBackend/internal/middleware"
	"VSLBackend/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	metrics          *metrics.Metrics
	streamReadLimit  int64
}

// DefaultStreamReadLimit caps a single stream message when New gets no limit.
const DefaultStreamReadLimit int64 = 16 << 20

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	metrics *metrics.Metrics,
	streamReadLimit int64,
) *DetectionHandler {
	if streamReadLimit <= 0 {
		streamReadLimit = DefaultStreamReadLimit
	}

	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		metrics:          metrics,
		streamReadLimit:  streamReadLimit,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	detections := srv.Group("/detections")
	detections.Post("", h.middleware.NewRateLimiter, h.Upload)
	detections.Get("/result", h.Result)
	detections.Post("/sentence", h.GenerateSentence)
	detections.Get("/history", h.History)

	detections.Use("/stream", wsMiddleware)
	detections.Get("/stream", websocket.New(h.handleStream))
}
