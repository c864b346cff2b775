package detectionHandler

import (
	"VSLBackend/internal/api/detection"
	detectionService "VSLBackend/internal/api/detection/service"
	"VSLBackend/internal/middleware"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/log"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	frameTimeout       = 30 * time.Second
)

type streamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
}

func (h *DetectionHandler) handleStream(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	h.serveStream(contextPkg.WithRequestID(context.Background(), requestID), c)
}

// serveStream runs one session until the client disconnects or a reply
// cannot be delivered. A bad message gets one error reply and the loop
// keeps going. Messages over the read limit close the connection.
func (h *DetectionHandler) serveStream(ctx context.Context, conn streamConn) {
	requestID := contextPkg.GetRequestID(ctx)
	conn.SetReadLimit(h.streamReadLimit)
	session := h.detectionService.NewStreamSession()

	h.metrics.StreamOpened()
	h.log.WithFields(log.Fields{"request_id": requestID}).Info("Stream client connected")
	defer func() {
		h.metrics.StreamClosed()
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"frame_count": session.FrameCount,
		}).Info("Stream client disconnected")
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(log.Fields{
					"request_id": requestID,
					"error":      err.Error(),
				}).Warn("Stream connection error")
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		result, err := h.processStreamMessage(ctx, session, message)
		if err != nil {
			h.metrics.StreamError()
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Stream message rejected")

			if !h.writeStream(conn, detection.StreamErrorResponse{Error: err.Error()}) {
				return
			}
			continue
		}

		if !h.writeStream(conn, result) {
			return
		}
	}
}

func (h *DetectionHandler) processStreamMessage(ctx context.Context, session *detectionService.StreamSession, message []byte) (*detection.StreamResponse, error) {
	var req detection.StreamRequest
	if err := jsoniter.Unmarshal(message, &req); err != nil {
		return nil, detection.ErrInvalidJSON
	}

	if req.Image == nil {
		return nil, detection.ErrNoImageData
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInvalidSettings, err)
	}

	c, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	return h.detectionService.ProcessStreamFrame(c, session, req)
}

func (h *DetectionHandler) writeStream(conn streamConn, v interface{}) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return false
	}

	if err := conn.WriteJSON(v); err != nil {
		h.log.Errorf("Error writing stream response: %v", err)
		return false
	}

	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Errorf("Error resetting write deadline: %v", err)
		return false
	}

	return true
}
