package main

import (
	"VSLBackend/internal/config"
	"VSLBackend/pkg/gemini"
	"VSLBackend/pkg/imaging"
	"VSLBackend/pkg/log"
	"VSLBackend/pkg/metrics"
	"VSLBackend/pkg/openai"
	"VSLBackend/pkg/redis"
	"VSLBackend/pkg/video"
	websocketPkg "VSLBackend/pkg/websocket"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", err)
	}

	validator := config.NewValidator()
	appConfig, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, appConfig.BodyLimitMB)
	detector := websocketPkg.NewModelClient(logger, os.Getenv("AI_DETECTION_URL"))
	renderer := imaging.NewRenderer(appConfig.FontPath, logger)

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithAppConfig(appConfig),
		config.WithDetector(detector),
		config.WithMiddleware(),
		config.WithMetrics(metrics.New()),
		config.WithRenderer(renderer),
		config.WithVideo(video.New()),
		config.WithUtils(),
	}

	switch appConfig.Paraphrase {
	case config.ParaphraseOpenAI:
		options = append(options, config.WithParaphraser(openai.NewChatGPT()))
	case config.ParaphraseGemini:
		geminiClient, err := gemini.NewGeminiClient()
		if err != nil {
			logger.Fatalf("Failed to create Gemini client: %v", err)
		}
		defer geminiClient.Close()
		options = append(options, config.WithParaphraser(geminiClient))
	default:
		logger.Info("Paraphrasing disabled, sentences are built from glosses")
	}

	if os.Getenv("REDIS_ADDRESS") != "" {
		options = append(options, config.WithRedisServer(redis.New()))
	}
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("DB_HOST") != "" {
		options = append(options, config.WithDatabase())
	}
	if os.Getenv("AWS_BUCKET_NAME") != "" {
		options = append(options, config.WithS3Client())
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
