package config

import (
	"VSLBackend/pkg/log"
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, bodyLimitMB int) *fiber.App {
	if bodyLimitMB <= 0 {
		bodyLimitMB = 50
	}

	app := fiber.New(
		fiber.Config{
			AppName:           "VSL Detection Backend",
			BodyLimit:         bodyLimitMB * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     false,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var fe *fiber.Error
				if errors.As(err, &fe) {
					code = fe.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.WithFields(log.Fields{
						"path":  c.Path(),
						"error": err.Error(),
					}).Error("Unhandled error")
				}
				return c.Status(code).JSON(fiber.Map{"error": err.Error()})
			},
		})

	return app
}
