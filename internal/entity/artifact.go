package entity

import "time"

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type Artifact struct {
	Path        string
	Name        string
	Type        MediaType
	ContentType string
	Size        int64
	ModTime     time.Time
}
