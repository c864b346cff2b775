package detectionService

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/imaging"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProcessStreamFrame runs one validated stream message through the session:
// settings merge, sampling gate, decode, detect and optional annotation.
func (s *detectionService) ProcessStreamFrame(ctx context.Context, session *StreamSession, req detection.StreamRequest) (*detection.StreamResponse, error) {
	if req.Image == nil {
		return nil, detection.ErrNoImageData
	}

	s.metrics.FrameReceived()
	session.Update(req)

	if len(req.Timestamp) == 0 {
		req.Timestamp = json.RawMessage("null")
	}

	if !session.Admit() {
		s.metrics.FrameSkipped()
		return &detection.StreamResponse{
			Timestamp:  req.Timestamp,
			Detections: []entity.Detection{},
			Skipped:    true,
		}, nil
	}

	img, raw, err := imaging.DecodeDataURI(*req.Image, s.cfg.MaxImagePixels)
	if err != nil {
		return nil, detection.ErrInvalidImage
	}

	encoded := raw
	if session.ResizeFactor != 1.0 {
		scaled := imaging.Scale(img, session.ResizeFactor)
		encoded, err = imaging.EncodeJPEG(scaled, 95)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
		}
	}

	detections, err := s.detectFrame(ctx, encoded, s.streamSettings(session))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}
	s.metrics.FrameProcessed()

	resp := &detection.StreamResponse{
		Timestamp:  req.Timestamp,
		Detections: detections,
	}

	if session.ReturnImage {
		annotated, err := s.annotateJPEG(img, detections)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"error":      err.Error(),
			}).Warn("Failed to encode annotated frame, returning original")
			resp.Image = *req.Image
		} else {
			resp.Image = imaging.JPEGDataURI(annotated)
		}
	}

	return resp, nil
}
