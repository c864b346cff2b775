package config

import (
	detectionService "VSLBackend/internal/api/detection/service"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ParaphraseNone   = "none"
	ParaphraseOpenAI = "openai"
	ParaphraseGemini = "gemini"
)

type AppConfig struct {
	Port          string  `env:"APP_PORT" validate:"required,numeric"`
	Env           string  `env:"APP_ENV"`
	CORSOrigins   string  `env:"CORS_ORIGINS" validate:"required"`
	BodyLimitMB   int     `env:"BODY_LIMIT_MB" validate:"gt=0"`
	StreamLimitMB int     `env:"STREAM_READ_LIMIT_MB" validate:"gt=0"`
	RateLimit     float64 `env:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateBurst     int     `env:"RATE_LIMIT_BURST" validate:"gt=0"`
	Paraphrase    string  `env:"PARAPHRASE_PROVIDER" validate:"oneof=none openai gemini"`
	FontPath      string  `env:"FONT_PATH"`
	OutputDir     string  `env:"PREDICTION_DIR" validate:"required"`
	Detection     Detection
}

type Detection struct {
	UploadThreshold     float64       `env:"UPLOAD_CONFIDENCE" validate:"gt=0,lte=1"`
	StreamThreshold     float64       `env:"STREAM_CONFIDENCE" validate:"gt=0,lte=1"`
	UploadInputSize     int           `env:"UPLOAD_INPUT_SIZE" validate:"gt=0"`
	StreamInputSize     int           `env:"STREAM_INPUT_SIZE" validate:"gt=0"`
	StreamMaxDetections int           `env:"STREAM_MAX_DETECTIONS" validate:"min=0"`
	MaxBatchFrames      int           `env:"MAX_BATCH_FRAMES" validate:"gt=0"`
	MaxImagePixels      int           `env:"MAX_IMAGE_PIXELS" validate:"gt=0"`
	TempDir             string        `env:"TEMP_DIR" validate:"required"`
	SentenceCacheTTL    time.Duration `env:"SENTENCE_CACHE_TTL" validate:"gte=0"`
}

// LoadAppConfig reads the process environment on top of the built in defaults.
func LoadAppConfig(v *validator.Validate) (*AppConfig, error) {
	defaults := detectionService.DefaultConfig()

	cfg := &AppConfig{
		Port:        getEnv("APP_PORT", "3000"),
		Env:         getEnv("APP_ENV", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		Paraphrase:  strings.ToLower(getEnv("PARAPHRASE_PROVIDER", ParaphraseNone)),
		FontPath:    getEnv("FONT_PATH", "fonts/arial.ttf"),
		OutputDir:   getEnv("PREDICTION_DIR", "runs/detect/predict"),
	}

	var errs []string
	parse := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	var err error
	cfg.BodyLimitMB, err = getEnvInt("BODY_LIMIT_MB", 50)
	parse("BODY_LIMIT_MB", err)
	cfg.StreamLimitMB, err = getEnvInt("STREAM_READ_LIMIT_MB", 16)
	parse("STREAM_READ_LIMIT_MB", err)
	cfg.RateLimit, err = getEnvFloat("RATE_LIMIT_RPS", 5)
	parse("RATE_LIMIT_RPS", err)
	cfg.RateBurst, err = getEnvInt("RATE_LIMIT_BURST", 10)
	parse("RATE_LIMIT_BURST", err)

	d := &cfg.Detection
	d.UploadThreshold, err = getEnvFloat("UPLOAD_CONFIDENCE", defaults.UploadThreshold)
	parse("UPLOAD_CONFIDENCE", err)
	d.StreamThreshold, err = getEnvFloat("STREAM_CONFIDENCE", defaults.StreamThreshold)
	parse("STREAM_CONFIDENCE", err)
	d.UploadInputSize, err = getEnvInt("UPLOAD_INPUT_SIZE", defaults.UploadInputSize)
	parse("UPLOAD_INPUT_SIZE", err)
	d.StreamInputSize, err = getEnvInt("STREAM_INPUT_SIZE", defaults.StreamInputSize)
	parse("STREAM_INPUT_SIZE", err)
	d.StreamMaxDetections, err = getEnvInt("STREAM_MAX_DETECTIONS", defaults.StreamMaxDetections)
	parse("STREAM_MAX_DETECTIONS", err)
	d.MaxBatchFrames, err = getEnvInt("MAX_BATCH_FRAMES", defaults.MaxBatchFrames)
	parse("MAX_BATCH_FRAMES", err)
	d.MaxImagePixels, err = getEnvInt("MAX_IMAGE_PIXELS", defaults.MaxImagePixels)
	parse("MAX_IMAGE_PIXELS", err)
	d.SentenceCacheTTL, err = getEnvDuration("SENTENCE_CACHE_TTL", defaults.SentenceCacheTTL)
	parse("SENTENCE_CACHE_TTL", err)
	d.TempDir = getEnv("TEMP_DIR", defaults.TempDir)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ServiceConfig converts the detection settings into the service's config.
func (c *AppConfig) ServiceConfig() detectionService.Config {
	out := detectionService.DefaultConfig()
	out.UploadThreshold = c.Detection.UploadThreshold
	out.StreamThreshold = c.Detection.StreamThreshold
	out.UploadInputSize = c.Detection.UploadInputSize
	out.StreamInputSize = c.Detection.StreamInputSize
	out.StreamMaxDetections = c.Detection.StreamMaxDetections
	out.MaxBatchFrames = c.Detection.MaxBatchFrames
	out.MaxImagePixels = c.Detection.MaxImagePixels
	out.TempDir = c.Detection.TempDir
	out.SentenceCacheTTL = c.Detection.SentenceCacheTTL
	return out
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
