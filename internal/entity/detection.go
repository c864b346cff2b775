package entity

// RawDetection is a single box as returned by the detection model, in the
// coordinate space of the image that was sent to it.
type RawDetection struct {
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// Detection is a filtered, labelled box in original frame coordinates.
type Detection struct {
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

type FrameResult struct {
	FrameNumber int         `json:"frame_number"`
	Timestamp   float64     `json:"timestamp"`
	Detections  []Detection `json:"detections"`
}

type BatchResult struct {
	Frames []FrameResult
	FPS    float64
	Width  int
	Height int
}

func (b *BatchResult) DetectionCount() int {
	n := 0
	for _, f := range b.Frames {
		n += len(f.Detections)
	}
	return n
}
