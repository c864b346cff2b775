package context

import (
	"context"
	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey      = "request_id"
	fiberRequestIDKey = "X-Request-ID"
	unknownRequestID  = "unknown"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return unknownRequestID
	}
	return requestID
}

func FromFiberCtx(c *fiber.Ctx) context.Context {
	return WithRequestID(context.Background(), RequestIDFromFiber(c))
}

// RequestIDFromFiber reads the id stored by the request id middleware, falling
// back to the inbound header.
func RequestIDFromFiber(c *fiber.Ctx) string {
	requestID, ok := c.Locals(fiberRequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = c.Get(fiberRequestIDKey)
		if requestID == "" {
			requestID = unknownRequestID
		}
	}
	return requestID
}
