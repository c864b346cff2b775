package detection

import (
	"VSLBackend/internal/entity"
	"bytes"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// StreamRequest is one inbound stream message. Settings are pointers so an
// absent key leaves the session untouched.
type StreamRequest struct {
	Image        *string         `json:"image"`
	Timestamp    json.RawMessage `json:"timestamp,omitempty"`
	SkipFrames   *int            `json:"skip_frames,omitempty" validate:"omitempty,min=0"`
	ResizeFactor *float64        `json:"resize_factor,omitempty" validate:"omitempty,gt=0"`
	InputSize    *int            `json:"input_size,omitempty" validate:"omitempty,gt=0"`
	ReturnImage  *bool           `json:"return_image,omitempty"`
}

type StreamResponse struct {
	Timestamp  json.RawMessage    `json:"timestamp"`
	Detections []entity.Detection `json:"detections"`
	Skipped    bool               `json:"skipped,omitempty"`
	Image      string             `json:"image,omitempty"`
}

type StreamErrorResponse struct {
	Error string `json:"error"`
}

type UploadResponse struct {
	Detections  interface{}      `json:"detections"`
	Type        entity.MediaType `json:"type"`
	Sentence    string           `json:"sentence"`
	FPS         *float64         `json:"fps,omitempty"`
	VideoPath   string           `json:"video_path,omitempty"`
	ArtifactURL string           `json:"artifact_url,omitempty"`
	Warning     string           `json:"warning,omitempty"`
}

type SentenceRequest struct {
	Detections json.RawMessage `json:"detections" validate:"required"`
}

type SentenceResponse struct {
	Sentence string `json:"sentence"`
}

type HistoryQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type HistoryResponse struct {
	Runs []entity.DetectionRun `json:"runs"`
}

// GlossSource is either a flat detection list (image, stream) or a per frame
// list (video). Labels returns class names in arrival order.
type GlossSource interface {
	Labels() []string
	glossSource()
}

type FlatDetections []entity.Detection

func (f FlatDetections) Labels() []string {
	labels := make([]string, 0, len(f))
	for _, d := range f {
		labels = append(labels, d.ClassName)
	}
	return labels
}

func (FlatDetections) glossSource() {}

type FramedDetections []entity.FrameResult

func (f FramedDetections) Labels() []string {
	var labels []string
	for _, frame := range f {
		for _, d := range frame.Detections {
			labels = append(labels, d.ClassName)
		}
	}
	return labels
}

func (FramedDetections) glossSource() {}

// ParseGlossSource decides between the two shapes by looking for
// "frame_number" in the first element. A single object is read as a one
// element flat list.
func ParseGlossSource(raw []byte) (GlossSource, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return FlatDetections{}, nil
	}

	if raw[0] == '{' {
		var d entity.Detection
		if err := jsoniter.Unmarshal(raw, &d); err != nil {
			return nil, ErrInvalidDetections
		}
		return FlatDetections{d}, nil
	}

	var items []map[string]jsoniter.RawMessage
	if err := jsoniter.Unmarshal(raw, &items); err != nil {
		return nil, ErrInvalidDetections
	}
	if len(items) == 0 {
		return FlatDetections{}, nil
	}

	if _, framed := items[0]["frame_number"]; framed {
		var frames FramedDetections
		if err := jsoniter.Unmarshal(raw, &frames); err != nil {
			return nil, ErrInvalidDetections
		}
		return frames, nil
	}

	var flat FlatDetections
	if err := jsoniter.Unmarshal(raw, &flat); err != nil {
		return nil, ErrInvalidDetections
	}
	return flat, nil
}
