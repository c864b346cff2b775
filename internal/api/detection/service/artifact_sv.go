package detectionService

import (
	"VSLBackend/internal/api/detection"
	detectionRepository "VSLBackend/internal/api/detection/repository"
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (s *detectionService) LatestArtifact(ctx context.Context) (entity.Artifact, error) {
	artifact, err := s.artifacts.Latest()
	if err != nil {
		if errors.Is(err, detectionRepository.ErrNoArtifact) {
			return entity.Artifact{}, detection.ErrArtifactNotFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to list output directory")
		return entity.Artifact{}, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}
	return artifact, nil
}

// StreamArtifact copies the artifact to w in ChunkSize pieces so memory use
// stays bounded regardless of file size.
func (s *detectionService) StreamArtifact(ctx context.Context, artifact entity.Artifact, w io.Writer) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return detection.ErrArtifactNotFound
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, s.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func (s *detectionService) History(ctx context.Context, limit int) ([]entity.DetectionRun, error) {
	if s.repo == nil {
		return nil, detection.ErrHistoryUnavailable
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}

	runs, err := client.Runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}
	return runs, nil
}

// recordRun appends to the run history. Failures are logged only.
func (s *detectionService) recordRun(ctx context.Context, run entity.DetectionRun) {
	if s.repo == nil {
		return
	}

	requestID := contextPkg.GetRequestID(ctx)

	client, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to open history client")
		return
	}

	if err := client.Runs.CreateRun(ctx, run); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"run_id":     run.ID,
			"error":      err.Error(),
		}).Warn("Failed to record detection run")
	}
}

func (s *detectionService) mirrorArtifact(ctx context.Context, path string) string {
	if s.s3Client == nil || path == "" {
		return ""
	}

	location, err := s.s3Client.UploadArtifact(path)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"path":       path,
			"error":      err.Error(),
		}).Warn("Failed to mirror artifact to S3")
		return ""
	}
	return location
}
