package detectionService

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/video"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// runBatch detects on up to MaxBatchFrames frames of src, in order. It owns
// src and closes it on every path. When sink is non-nil each annotated frame
// is written to it; a failing sink is dropped and the run continues.
func (s *detectionService) runBatch(ctx context.Context, src video.Source, sink video.Writer) (*entity.BatchResult, error) {
	defer src.Close()

	requestID := contextPkg.GetRequestID(ctx)
	fps := src.FPS()
	width, height := src.Size()

	result := &entity.BatchResult{
		Frames: make([]entity.FrameResult, 0),
		FPS:    fps,
		Width:  width,
		Height: height,
	}
	settings := s.uploadSettings()

	for idx := 0; idx < s.cfg.MaxBatchFrames; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
		}

		frame, err := src.Read()
		if err != nil {
			if idx == 0 {
				return nil, detection.ErrNoVideoFrames
			}
			if !errors.Is(err, io.EOF) {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"frame":      idx,
					"error":      err.Error(),
				}).Warn("Stopping video iteration on read error")
			}
			break
		}

		timestamp := 0.0
		if fps > 0 {
			timestamp = float64(idx) / fps
		}

		detections, err := s.detectFrame(ctx, frame.Encoded, settings)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
		}
		s.metrics.BatchFrame()

		result.Frames = append(result.Frames, entity.FrameResult{
			FrameNumber: idx,
			Timestamp:   timestamp,
			Detections:  detections,
		})

		if sink != nil {
			if err := sink.Write(s.renderer.Annotate(frame.Image, detections)); err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"frame":      idx,
					"error":      err.Error(),
				}).Warn("Annotated video writer failed, continuing without output video")
				sink = nil
			}
		}
	}

	if len(result.Frames) == s.cfg.MaxBatchFrames {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"max_frames": s.cfg.MaxBatchFrames,
		}).Info("Video truncated at frame limit")
	}

	return result, nil
}
