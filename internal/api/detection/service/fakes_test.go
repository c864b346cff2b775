package detectionService

import (
	detectionRepository "VSLBackend/internal/api/detection/repository"
	"VSLBackend/internal/entity"
	"VSLBackend/pkg/imaging"
	"VSLBackend/pkg/redis"
	"VSLBackend/pkg/utils"
	"VSLBackend/pkg/video"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type detectCall struct {
	frame         []byte
	inputSize     int
	maxDetections int
}

type fakeDetector struct {
	mu     sync.Mutex
	calls  []detectCall
	result []entity.RawDetection
	err    error
	labels map[int]string
}

func (f *fakeDetector) Detect(ctx context.Context, frame []byte, inputSize int, maxDetections int) ([]entity.RawDetection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, detectCall{frame: frame, inputSize: inputSize, maxDetections: maxDetections})
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.RawDetection, len(f.result))
	copy(out, f.result)
	return out, nil
}

func (f *fakeDetector) Label(classID int) string {
	if name, ok := f.labels[classID]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", classID)
}

func (f *fakeDetector) IsConnected() bool { return true }
func (f *fakeDetector) Reconnect() error  { return nil }
func (f *fakeDetector) CloseConnection()  {}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeParaphraser struct {
	calls []string
	err   error
}

func (f *fakeParaphraser) Paraphrase(ctx context.Context, glosses string) (string, error) {
	f.calls = append(f.calls, glosses)
	if f.err != nil {
		return "", f.err
	}
	return "P(" + glosses + ")", nil
}

type fakeSource struct {
	frames  int
	fps     float64
	read    int
	failAt  int
	closed  bool
	readErr error
}

func (s *fakeSource) FPS() float64     { return s.fps }
func (s *fakeSource) Size() (int, int) { return 8, 8 }
func (s *fakeSource) Close() error     { s.closed = true; return nil }

func (s *fakeSource) Read() (*video.Frame, error) {
	if s.failAt > 0 && s.read == s.failAt-1 {
		s.read++
		return nil, s.readErr
	}
	if s.read >= s.frames {
		return nil, io.EOF
	}
	s.read++
	return &video.Frame{
		Image:   image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Encoded: []byte{byte(s.read)},
	}, nil
}

type fakeWriter struct {
	path    string
	written int
	failAt  int
	noFile  bool
}

func (w *fakeWriter) Write(img image.Image) error {
	w.written++
	if w.failAt > 0 && w.written >= w.failAt {
		return errors.New("disk full")
	}
	return nil
}

func (w *fakeWriter) Close() error {
	if w.noFile || w.written == 0 {
		return nil
	}
	return os.WriteFile(w.path, []byte("avi"), 0o644)
}

type fakeVideo struct {
	source     *fakeSource
	openErr    error
	writer     *fakeWriter
	writerErr  error
	convertErr error
	skipMP4    bool
	converted  bool
}

func (v *fakeVideo) OpenSource(path string) (video.Source, error) {
	if v.openErr != nil {
		return nil, v.openErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return v.source, nil
}

func (v *fakeVideo) NewWriter(path string, fps float64, width, height int) (video.Writer, error) {
	if v.writerErr != nil {
		return nil, v.writerErr
	}
	if v.writer == nil {
		v.writer = &fakeWriter{}
	}
	v.writer.path = path
	return v.writer, nil
}

func (v *fakeVideo) ConvertToMP4(srcPath, dstPath string) error {
	v.converted = true
	if v.convertErr != nil {
		return v.convertErr
	}
	if v.skipMP4 {
		return nil
	}
	return os.WriteFile(dstPath, []byte("mp4"), 0o644)
}

type testDeps struct {
	detector    *fakeDetector
	paraphraser *fakeParaphraser
	video       *fakeVideo
	cache       redis.IRedis
	cfg         Config
	outDir      string
}

func newTestService(t *testing.T, deps *testDeps) *detectionService {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	root := t.TempDir()
	if deps.detector == nil {
		deps.detector = &fakeDetector{}
	}
	if deps.video == nil {
		deps.video = &fakeVideo{source: &fakeSource{frames: 3, fps: 30}}
	}
	if deps.cfg.UploadThreshold == 0 {
		deps.cfg = DefaultConfig()
	}
	deps.cfg.TempDir = filepath.Join(root, "temp_files")
	deps.outDir = filepath.Join(root, "runs", "detect", "predict")

	var paraphraser Paraphraser
	if deps.paraphraser != nil {
		paraphraser = deps.paraphraser
	}

	svc := NewDetectionService(
		logger,
		deps.cfg,
		deps.detector,
		paraphraser,
		deps.cache,
		imaging.NewRenderer("", nil),
		deps.video,
		detectionRepository.NewArtifactStore(deps.outDir, logger),
		nil,
		nil,
		nil,
		utils.New(),
	)

	return svc.(*detectionService)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
