package detectionService

import "VSLBackend/internal/api/detection"

// StreamSession is the mutable state of one stream connection. It is owned by
// the connection's read loop and never shared.
type StreamSession struct {
	SkipFrames   int
	ResizeFactor float64
	InputSize    int
	ReturnImage  bool
	FrameCount   int
}

func (s *detectionService) NewStreamSession() *StreamSession {
	return newStreamSession(s.cfg.StreamInputSize)
}

func newStreamSession(inputSize int) *StreamSession {
	return &StreamSession{
		ResizeFactor: 1.0,
		InputSize:    inputSize,
	}
}

// Update merges the settings present in req. Values must already be
// validated.
func (s *StreamSession) Update(req detection.StreamRequest) {
	if req.SkipFrames != nil {
		s.SkipFrames = *req.SkipFrames
	}
	if req.ResizeFactor != nil {
		s.ResizeFactor = *req.ResizeFactor
	}
	if req.InputSize != nil {
		s.InputSize = *req.InputSize
	}
	if req.ReturnImage != nil {
		s.ReturnImage = *req.ReturnImage
	}
}

// Admit counts the frame and reports whether it should reach the model.
func (s *StreamSession) Admit() bool {
	s.FrameCount++
	return s.SkipFrames == 0 || s.FrameCount%(s.SkipFrames+1) == 0
}
