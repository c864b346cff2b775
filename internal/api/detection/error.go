package detection

import (
	"VSLBackend/pkg/response"
	"net/http"
)

var (
	ErrInvalidJSON       = response.NewError(http.StatusBadRequest, "Invalid JSON data")
	ErrNoImageData       = response.NewError(http.StatusBadRequest, "No image data received")
	ErrInvalidImage      = response.NewError(http.StatusBadRequest, "Invalid image data")
	ErrInvalidSettings   = response.NewError(http.StatusBadRequest, "Invalid stream settings")
	ErrNoFile            = response.NewError(http.StatusBadRequest, "No file uploaded")
	ErrNoFilename        = response.NewError(http.StatusBadRequest, "No filename provided")
	ErrUnsupportedFormat = response.NewError(http.StatusBadRequest, "Unsupported file format")
	ErrCorruptImage      = response.NewError(http.StatusBadRequest, "Failed to read image, it may be corrupted")
	ErrInvalidVideo      = response.NewError(http.StatusBadRequest, "Failed to open video file, it may be corrupted")
	ErrNoVideoFrames     = response.NewError(http.StatusBadRequest, "Failed to read video frames")
	ErrInvalidDetections = response.NewError(http.StatusBadRequest, "Invalid detections payload")

	ErrProcessing          = response.NewError(http.StatusInternalServerError, "Processing error")
	ErrSaveFile            = response.NewError(http.StatusInternalServerError, "Failed to save uploaded file")
	ErrConversion          = response.NewError(http.StatusInternalServerError, "Failed to convert output video")
	ErrArtifactNotFound    = response.NewError(http.StatusNotFound, "No prediction files found")
	ErrHistoryUnavailable  = response.NewError(http.StatusServiceUnavailable, "Detection history is not configured")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
