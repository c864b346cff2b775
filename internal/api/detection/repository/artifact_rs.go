package detectionRepository

import (
	"VSLBackend/internal/entity"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNoArtifact = errors.New("no artifact in output directory")

var artifactContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ArtifactStore owns the output directory. Runs share it, so callers take
// Lock for the duration of a run.
type ArtifactStore interface {
	Lock()
	Unlock()
	Reset() error
	Dir() string
	Path(name string) string
	PublicPath(name string) string
	Exists(name string) bool
	Remove(name string) error
	Latest() (entity.Artifact, error)
}

type artifactStore struct {
	mu  sync.Mutex
	dir string
	log *logrus.Logger
}

func NewArtifactStore(dir string, log *logrus.Logger) ArtifactStore {
	return &artifactStore{
		dir: filepath.Clean(dir),
		log: log,
	}
}

func (s *artifactStore) Lock()   { s.mu.Lock() }
func (s *artifactStore) Unlock() { s.mu.Unlock() }

func (s *artifactStore) Dir() string {
	return s.dir
}

// Reset clears the previous run's output and recreates the directory.
func (s *artifactStore) Reset() error {
	if err := os.RemoveAll(s.dir); err != nil {
		s.log.WithFields(logrus.Fields{
			"dir":   s.dir,
			"error": err.Error(),
		}).Warn("Failed to clear output directory")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

func (s *artifactStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// PublicPath is the slash separated path reported to clients.
func (s *artifactStore) PublicPath(name string) string {
	return filepath.ToSlash(s.Path(name))
}

func (s *artifactStore) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (s *artifactStore) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Latest returns the most recently written artifact, preferring deliverable
// formats over the intermediate .avi.
func (s *artifactStore) Latest() (entity.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entity.Artifact{}, ErrNoArtifact
		}
		return entity.Artifact{}, err
	}

	var best entity.Artifact
	found := false

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		contentType, ok := artifactContentTypes[ext]
		if !ok {
			continue
		}

		candidate := entity.Artifact{
			Path:        filepath.Join(s.dir, e.Name()),
			Name:        e.Name(),
			Type:        MediaTypeForExt(ext),
			ContentType: contentType,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
		}

		if !found || better(candidate, best) {
			best = candidate
			found = true
		}
	}

	if !found {
		return entity.Artifact{}, ErrNoArtifact
	}
	return best, nil
}

func better(a, b entity.Artifact) bool {
	aIntermediate := strings.EqualFold(filepath.Ext(a.Name), ".avi")
	bIntermediate := strings.EqualFold(filepath.Ext(b.Name), ".avi")
	if aIntermediate != bIntermediate {
		return bIntermediate
	}
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.Name < b.Name
}

func MediaTypeForExt(ext string) entity.MediaType {
	switch strings.ToLower(ext) {
	case ".mp4", ".mov", ".avi":
		return entity.MediaTypeVideo
	default:
		return entity.MediaTypeImage
	}
}
