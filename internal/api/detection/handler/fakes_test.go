package detectionHandler

import (
	"VSLBackend/internal/api/detection"
	detectionService "VSLBackend/internal/api/detection/service"
	"VSLBackend/internal/entity"
	"VSLBackend/internal/middleware"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type fakeService struct {
	mu sync.Mutex

	streamCalls  []detection.StreamRequest
	streamErr    error
	uploadName   string
	uploadBody   string
	uploadResp   *detection.UploadResponse
	uploadErr    error
	sentenceSeen []string
	artifact     *entity.Artifact
	historyLimit int
	historyErr   error
}

func (f *fakeService) NewStreamSession() *detectionService.StreamSession {
	return &detectionService.StreamSession{ResizeFactor: 1, InputSize: 320}
}

func (f *fakeService) ProcessStreamFrame(ctx context.Context, session *detectionService.StreamSession, req detection.StreamRequest) (*detection.StreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.streamCalls = append(f.streamCalls, req)
	session.FrameCount++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &detection.StreamResponse{
		Timestamp:  req.Timestamp,
		Detections: []entity.Detection{{ClassName: "xin chào", Confidence: 0.9, BBox: []float64{1, 2, 3, 4}}},
	}, nil
}

func (f *fakeService) ProcessUpload(ctx context.Context, filename string, src io.Reader) (*detection.UploadResponse, error) {
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	f.uploadName = filename
	f.uploadBody = string(body)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadResp, nil
}

func (f *fakeService) GenerateSentence(ctx context.Context, source detection.GlossSource) (string, error) {
	f.sentenceSeen = source.Labels()
	return strings.Join(f.sentenceSeen, " "), nil
}

func (f *fakeService) LatestArtifact(ctx context.Context) (entity.Artifact, error) {
	if f.artifact == nil {
		return entity.Artifact{}, detection.ErrArtifactNotFound
	}
	return *f.artifact, nil
}

func (f *fakeService) StreamArtifact(ctx context.Context, artifact entity.Artifact, w io.Writer) error {
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (f *fakeService) History(ctx context.Context, limit int) ([]entity.DetectionRun, error) {
	f.historyLimit = limit
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return nil, nil
}

type fakeConn struct {
	inbox     []string
	writes    []string
	writeErr  error
	readLimit int64
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if len(c.inbox) == 0 {
		return 0, nil, io.EOF
	}
	msg := c.inbox[0]
	c.inbox = c.inbox[1:]
	if c.readLimit > 0 && int64(len(msg)) > c.readLimit {
		return 0, nil, errReadLimit
	}
	return 1, []byte(msg), nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(limit int64)           { c.readLimit = limit }

var (
	errClosed    = errors.New("use of closed connection")
	errReadLimit = errors.New("websocket: read limit exceeded")
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler(svc *fakeService) (*DetectionHandler, *fiber.App) {
	logger := quietLogger()
	h := New(logger, validator.New(), middleware.New(logger), svc, nil, 0)

	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	h.Start(app.Group("/v1"))
	return h, app
}
