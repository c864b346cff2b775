package detectionService

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/imaging"
	"VSLBackend/pkg/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const noVideoWarning = "No output video was generated"

// ProcessUpload validates the filename, stores the upload in a temp file and
// runs the image or video pipeline on it. The temp file is removed on every
// path.
func (s *detectionService) ProcessUpload(ctx context.Context, filename string, src io.Reader) (*detection.UploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	isImage, isVideo, err := s.classifyUpload(filename)
	if err != nil {
		return nil, err
	}

	s.artifacts.Lock()
	defer s.artifacts.Unlock()

	if err := s.artifacts.Reset(); err != nil {
		s.metrics.UploadFailed()
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}

	tempPath, err := s.utils.SaveTempFile(s.cfg.TempDir, filename, src)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"filename":   filename,
			"error":      err.Error(),
		}).Error("Failed to save upload")
		s.metrics.UploadFailed()
		return nil, fmt.Errorf("%w: %v", detection.ErrSaveFile, err)
	}
	defer s.removeTemp(requestID, tempPath)

	var resp *detection.UploadResponse
	switch {
	case isVideo:
		resp, err = s.processVideo(ctx, filename, tempPath)
	case isImage:
		resp, err = s.processImage(ctx, filename, tempPath)
	}
	if err != nil {
		s.metrics.UploadFailed()
		return nil, err
	}

	s.metrics.UploadProcessed(isVideo)
	return resp, nil
}

func (s *detectionService) classifyUpload(filename string) (isImage bool, isVideo bool, err error) {
	if strings.TrimSpace(filename) == "" {
		return false, false, detection.ErrNoFilename
	}

	isImage = s.utils.HasExtension(filename, s.cfg.ImageExtensions)
	isVideo = s.utils.HasExtension(filename, s.cfg.VideoExtensions)
	if !isImage && !isVideo {
		return false, false, fmt.Errorf("%w. Allowed formats: %s",
			detection.ErrUnsupportedFormat, utils.SortedExtensions(s.cfg.ImageExtensions, s.cfg.VideoExtensions))
	}

	return isImage, isVideo, nil
}

func (s *detectionService) removeTemp(requestID string, path string) {
	if _, err := s.utils.RemoveFileIfExists(path); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       path,
			"error":      err.Error(),
		}).Warn("Failed to remove temp file")
	}
}

func artifactBase(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *detectionService) processImage(ctx context.Context, filename string, tempPath string) (*detection.UploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}

	img, err := imaging.Decode(data, s.cfg.MaxImagePixels)
	if errors.Is(err, imaging.ErrImageTooLarge) {
		return nil, fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	}
	if err != nil {
		return nil, detection.ErrCorruptImage
	}

	detections, err := s.detectFrame(ctx, data, s.uploadSettings())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}

	artifactName := artifactBase(filename) + ".jpg"
	artifactPath := ""
	annotated, err := s.annotateJPEG(img, detections)
	if err == nil {
		err = os.WriteFile(s.artifacts.Path(artifactName), annotated, 0o644)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to write annotated image")
	} else {
		artifactPath = s.artifacts.Path(artifactName)
	}

	sentence, err := s.GenerateSentence(ctx, detection.FlatDetections(detections))
	if err != nil {
		return nil, err
	}

	resp := &detection.UploadResponse{
		Detections:  detections,
		Type:        entity.MediaTypeImage,
		Sentence:    sentence,
		ArtifactURL: s.mirrorArtifact(ctx, artifactPath),
	}

	s.recordRun(ctx, s.newRun(entity.MediaTypeImage, filename, sentence, 0, 1, len(detections), artifactPath))

	return resp, nil
}

func (s *detectionService) processVideo(ctx context.Context, filename string, tempPath string) (*detection.UploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	src, err := s.video.OpenSource(tempPath)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to open uploaded video")
		return nil, detection.ErrInvalidVideo
	}

	base := artifactBase(filename)
	aviName := base + ".avi"
	mp4Name := base + ".mp4"

	width, height := src.Size()
	writer, err := s.video.NewWriter(s.artifacts.Path(aviName), src.FPS(), width, height)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to open annotated video writer")
		writer = nil
	}

	result, err := s.runBatch(ctx, src, writer)
	if writer != nil {
		if closeErr := writer.Close(); closeErr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      closeErr.Error(),
			}).Warn("Failed to finalise annotated video")
		}
	}
	if err != nil {
		return nil, err
	}

	videoPath, err := s.convertOutput(ctx, aviName, mp4Name)
	if err != nil {
		return nil, err
	}

	sentence, err := s.GenerateSentence(ctx, detection.FramedDetections(result.Frames))
	if err != nil {
		return nil, err
	}

	fps := result.FPS
	resp := &detection.UploadResponse{
		Detections: result.Frames,
		Type:       entity.MediaTypeVideo,
		Sentence:   sentence,
		FPS:        &fps,
	}

	artifactPath := ""
	if videoPath != "" {
		artifactPath = s.artifacts.Path(mp4Name)
		resp.VideoPath = videoPath
		resp.ArtifactURL = s.mirrorArtifact(ctx, artifactPath)
	} else {
		resp.Warning = noVideoWarning
	}

	s.recordRun(ctx, s.newRun(entity.MediaTypeVideo, filename, sentence, result.FPS, len(result.Frames), result.DetectionCount(), artifactPath))

	return resp, nil
}

// convertOutput turns the intermediate .avi into the deliverable .mp4. The
// .avi is removed only once the .mp4 is confirmed on disk. An empty path means
// no output video exists.
func (s *detectionService) convertOutput(ctx context.Context, aviName, mp4Name string) (string, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.artifacts.Exists(aviName) {
		if err := s.video.ConvertToMP4(s.artifacts.Path(aviName), s.artifacts.Path(mp4Name)); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to convert output video")
			return "", fmt.Errorf("%w: %v", detection.ErrConversion, err)
		}

		if s.artifacts.Exists(mp4Name) {
			if err := s.artifacts.Remove(aviName); err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"error":      err.Error(),
				}).Warn("Failed to remove intermediate video")
			}
		}
	}

	if s.artifacts.Exists(mp4Name) {
		return s.artifacts.PublicPath(mp4Name), nil
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
	}).Warn(noVideoWarning)
	return "", nil
}

func (s *detectionService) newRun(mediaType entity.MediaType, filename, sentence string, fps float64, frames, detections int, artifactPath string) entity.DetectionRun {
	now := time.Now()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		id = fmt.Sprintf("%d", now.UnixNano())
	}

	return entity.DetectionRun{
		ID:             id,
		MediaType:      mediaType,
		SourceName:     filepath.Base(filename),
		Sentence:       sentence,
		FPS:            fps,
		FrameCount:     frames,
		DetectionCount: detections,
		ArtifactPath:   filepath.ToSlash(artifactPath),
		CreatedAt:      now,
	}
}
