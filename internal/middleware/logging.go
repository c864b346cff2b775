package middleware

import (
	"VSLBackend/pkg/log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const maxLoggedBody = 2048

type loggingMiddleware struct {
	logger *logrus.Logger
}

func newLoggingMiddleware(logger *logrus.Logger) *loggingMiddleware {
	return &loggingMiddleware{
		logger: logger,
	}
}

func logrusFields(c *fiber.Ctx, requestID string) log.Fields {
	return log.Fields{
		"request_id": requestID,
		"method":     c.Method(),
		"path":       c.Path(),
		"ip":         c.IP(),
	}
}

// NewLoggingMiddleware logs one line per request. Websocket upgrades are logged
// by the stream handler itself.
func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	l := m.loggingMiddleware

	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := m.GetRequestID(c)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		logFields := logrusFields(c, requestID)
		logFields["status"] = status
		logFields["latency_ms"] = latency.Milliseconds()
		logFields["user_agent"] = c.Get("User-Agent")
		logFields["response_size"] = len(c.Response().Body())

		if body := c.Request().Body(); len(body) > 0 && !isMultipart(c) {
			logFields["request_body"] = sanitizeRequestBody(body)
		}

		entry := l.logger.WithFields(logFields)
		switch {
		case status >= 500:
			entry.Error("Server error")
		case status >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Success")
		}

		return err
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// sanitizeRequestBody drops frame payloads and credentials from a JSON body
// before it is logged.
func sanitizeRequestBody(body []byte) string {
	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	elided := []string{"image", "frame", "data"}
	for _, field := range elided {
		if _, exists := jsonBody[field]; exists {
			jsonBody[field] = "[ELIDED]"
		}
	}

	sensitiveFields := []string{"password", "token", "secret", "key", "authorization"}
	for _, field := range sensitiveFields {
		if _, exists := jsonBody[field]; exists {
			jsonBody[field] = "[SECRET]"
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	if len(sanitized) > maxLoggedBody {
		return string(sanitized[:maxLoggedBody]) + "...[truncated]"
	}
	return string(sanitized)
}
