package entity

import "time"

type DetectionRun struct {
	ID             string    `db:"id" json:"id"`
	MediaType      MediaType `db:"media_type" json:"media_type"`
	SourceName     string    `db:"source_name" json:"source_name"`
	Sentence       string    `db:"sentence" json:"sentence"`
	FPS            float64   `db:"fps" json:"fps,omitempty"`
	FrameCount     int       `db:"frame_count" json:"frame_count"`
	DetectionCount int       `db:"detection_count" json:"detection_count"`
	ArtifactPath   string    `db:"artifact_path" json:"artifact_path,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
