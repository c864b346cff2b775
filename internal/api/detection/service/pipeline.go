package detectionService

import (
	"VSLBackend/internal/entity"
	"VSLBackend/pkg/imaging"
	"context"
	"image"
	"time"
)

type frameSettings struct {
	threshold     float64
	inputSize     int
	maxDetections int
	resizeFactor  float64
}

func (s *detectionService) uploadSettings() frameSettings {
	return frameSettings{
		threshold:     s.cfg.UploadThreshold,
		inputSize:     s.cfg.UploadInputSize,
		maxDetections: s.cfg.UploadMaxDetections,
		resizeFactor:  1.0,
	}
}

func (s *detectionService) streamSettings(session *StreamSession) frameSettings {
	return frameSettings{
		threshold:     s.cfg.StreamThreshold,
		inputSize:     session.InputSize,
		maxDetections: s.cfg.StreamMaxDetections,
		resizeFactor:  session.ResizeFactor,
	}
}

// detectFrame is shared by image uploads, video frames and stream frames.
func (s *detectionService) detectFrame(ctx context.Context, encoded []byte, set frameSettings) ([]entity.Detection, error) {
	start := time.Now()
	raw, err := s.detector.Detect(ctx, encoded, set.inputSize, set.maxDetections)
	s.metrics.ObserveOracle("detect", time.Since(start))
	if err != nil {
		return nil, err
	}

	detections := filterAndRescale(raw, set.threshold, set.resizeFactor, s.detector.Label)
	s.metrics.AddDetections(len(detections))
	return detections, nil
}

// filterAndRescale drops boxes under threshold, resolves labels and maps
// boxes back to the unscaled frame.
func filterAndRescale(raw []entity.RawDetection, threshold, resizeFactor float64, label func(int) string) []entity.Detection {
	detections := make([]entity.Detection, 0, len(raw))

	for _, r := range raw {
		if r.Confidence < threshold {
			continue
		}

		bbox := make([]float64, len(r.BBox))
		copy(bbox, r.BBox)
		if resizeFactor > 0 && resizeFactor != 1.0 {
			for i := range bbox {
				bbox[i] /= resizeFactor
			}
		}

		detections = append(detections, entity.Detection{
			ClassName:  label(r.ClassID),
			Confidence: r.Confidence,
			BBox:       bbox,
		})
	}

	return detections
}

func (s *detectionService) annotateJPEG(img image.Image, detections []entity.Detection) ([]byte, error) {
	annotated := s.renderer.Annotate(img, detections)
	return imaging.EncodeJPEG(annotated, imaging.DefaultJPEGQuality)
}
