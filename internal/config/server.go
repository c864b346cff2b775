package config

import (
	"VSLBackend/database/postgres"
	detectionHandler "VSLBackend/internal/api/detection/handler"
	detectionRepository "VSLBackend/internal/api/detection/repository"
	detectionService "VSLBackend/internal/api/detection/service"
	"VSLBackend/internal/middleware"
	"VSLBackend/pkg/imaging"
	"VSLBackend/pkg/metrics"
	"VSLBackend/pkg/redis"
	"VSLBackend/pkg/s3"
	"VSLBackend/pkg/utils"
	"VSLBackend/pkg/video"
	websocketPkg "VSLBackend/pkg/websocket"
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	appConfig   *AppConfig
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	detector    websocketPkg.IDetector
	paraphraser detectionService.Paraphraser
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	metrics     *metrics.Metrics
	renderer    *imaging.Renderer
	video       video.IVideo
	mounted     bool
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.appConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detection model client is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log,
			middleware.WithRateLimit(server.appConfig.RateLimit, server.appConfig.RateBurst))
	}
	if server.video == nil {
		server.video = video.New()
	}
	if server.renderer == nil {
		server.renderer = imaging.NewRenderer(server.appConfig.FontPath, server.log)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.appConfig = cfg
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithDetector(detector websocketPkg.IDetector) ServerOption {
	return func(s *Server) error {
		s.detector = detector
		return nil
	}
}

func WithParaphraser(paraphraser detectionService.Paraphraser) ServerOption {
	return func(s *Server) error {
		s.paraphraser = paraphraser
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.appConfig == nil {
			return fmt.Errorf("app config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log,
			middleware.WithRateLimit(s.appConfig.RateLimit, s.appConfig.RateBurst))
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithVideo(v video.IVideo) ServerOption {
	return func(s *Server) error {
		s.video = v
		return nil
	}
}

func WithRenderer(r *imaging.Renderer) ServerOption {
	return func(s *Server) error {
		s.renderer = r
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var repo detectionRepository.Repository
	if s.db != nil {
		repo = detectionRepository.New(s.db, s.log)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.log.Errorf("Failed to prepare detection history schema, history disabled: %v", err)
			repo = nil
		}
		cancel()
	}

	artifacts := detectionRepository.NewArtifactStore(s.appConfig.OutputDir, s.log)

	detectionServices := detectionService.NewDetectionService(
		s.log,
		s.appConfig.ServiceConfig(),
		s.detector,
		s.paraphraser,
		s.redisServer,
		s.renderer,
		s.video,
		artifacts,
		repo,
		s.s3Client,
		s.metrics,
		s.utils,
	)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.metrics,
		int64(s.appConfig.StreamLimitMB)<<20)

	s.handlers = append(s.handlers, detectionHandlers)
}

// Mount installs the global middleware and every registered route. It is
// idempotent so tests can drive the engine without listening.
func (s *Server) Mount() *fiber.App {
	if s.mounted {
		return s.engine
	}
	s.mounted = true

	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:  s.appConfig.CORSOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, " + middleware.RequestIDKey,
		ExposeHeaders: middleware.RequestIDKey,
	}))

	s.setupHealthCheck()
	if s.metrics != nil {
		s.engine.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	router := s.engine.Group("/v1")
	router.Get("/status", s.status)

	for _, h := range s.handlers {
		h.Start(router)
	}

	return s.engine
}

func (s *Server) Run() error {
	s.Mount()

	port := s.appConfig.Port
	if port == "" {
		port = "3000"
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		return err
	}

	return nil
}

// Shutdown stops accepting requests and releases the shared clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.detector != nil {
		s.detector.CloseConnection()
	}
	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil {
			s.log.Errorf("Failed to close database: %v", closeErr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}

func (s *Server) status(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":          "online",
		"message":         "VSL Detection Backend running",
		"model_connected": s.detector.IsConnected(),
	})
}
