package handlerUtil

import (
	"VSLBackend/pkg/log"
	"VSLBackend/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle writes {"error": ...} with the status carried by a *response.Error.
// Anything else is logged and reported as a generic 500. Server side failures
// carry the trace id they were logged under.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields := log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}
		body := ErrorResponse{Error: err.Error()}
		if respErr.Code >= fiber.StatusInternalServerError {
			body.TraceID = log.ErrorWithTraceID(h.logger, fields, "Operation failed")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(body)
	}

	traceID := log.ErrorWithTraceID(h.logger, log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
