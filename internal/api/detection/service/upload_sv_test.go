package detectionService

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	"VSLBackend/pkg/response"
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessUpload_RejectsBeforeTouchingDisk(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)

	tests := []struct {
		filename string
		want     error
	}{
		{"", detection.ErrNoFilename},
		{"   ", detection.ErrNoFilename},
		{"clip.gif", detection.ErrUnsupportedFormat},
		{"noext", detection.ErrUnsupportedFormat},
		{"archive.mp4.zip", detection.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		_, err := svc.ProcessUpload(context.Background(), tt.filename, strings.NewReader("data"))
		if !errors.Is(err, tt.want) {
			t.Errorf("%q: err = %v, want %v", tt.filename, err, tt.want)
		}
		if response.StatusCode(err) != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", tt.filename, response.StatusCode(err))
		}
	}

	if _, err := os.Stat(deps.cfg.TempDir); !os.IsNotExist(err) {
		t.Error("temp dir was created for a rejected upload")
	}
	if _, err := os.Stat(deps.outDir); !os.IsNotExist(err) {
		t.Error("output dir was touched for a rejected upload")
	}
}

func TestProcessUpload_UnsupportedFormatMessage(t *testing.T) {
	svc := newTestService(t, &testDeps{})

	_, err := svc.ProcessUpload(context.Background(), "x.bmp", strings.NewReader(""))
	want := "Unsupported file format. Allowed formats: .jpeg, .jpg, .mov, .mp4, .png"
	if err == nil || err.Error() != want {
		t.Fatalf("err = %v, want %q", err, want)
	}
}

func TestProcessUpload_Image(t *testing.T) {
	deps := &testDeps{
		detector: &fakeDetector{
			labels: map[int]string{0: "xin chào"},
			result: []entity.RawDetection{{ClassID: 0, Confidence: 0.8, BBox: []float64{1, 20, 10, 30}}},
		},
		paraphraser: &fakeParaphraser{},
	}
	svc := newTestService(t, deps)

	resp, err := svc.ProcessUpload(context.Background(), "hand.PNG", bytes.NewReader(pngBytes(t, 40, 40)))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}

	if resp.Type != entity.MediaTypeImage {
		t.Errorf("type = %s", resp.Type)
	}
	dets, ok := resp.Detections.([]entity.Detection)
	if !ok || len(dets) != 1 || dets[0].ClassName != "xin chào" {
		t.Fatalf("unexpected detections %#v", resp.Detections)
	}
	if resp.Sentence != "xin chào" {
		t.Errorf("sentence = %q", resp.Sentence)
	}
	if resp.FPS != nil || resp.VideoPath != "" || resp.Warning != "" {
		t.Errorf("image response carries video fields: %+v", resp)
	}
	if call := deps.detector.calls[0]; call.inputSize != 640 {
		t.Errorf("input size = %d, want 640", call.inputSize)
	}

	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
	if _, err := os.Stat(filepath.Join(deps.outDir, "hand.jpg")); err != nil {
		t.Errorf("annotated image not written: %v", err)
	}
}

func TestProcessUpload_CorruptImage(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "broken.jpg", strings.NewReader("not an image"))
	if !errors.Is(err, detection.ErrCorruptImage) {
		t.Fatalf("err = %v, want ErrCorruptImage", err)
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
	if deps.detector.callCount() != 0 {
		t.Error("detector called for a corrupt image")
	}
}

func TestProcessUpload_ImageTooLarge(t *testing.T) {
	deps := &testDeps{cfg: DefaultConfig()}
	deps.cfg.MaxImagePixels = 100
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "wide.png", bytes.NewReader(pngBytes(t, 20, 10)))
	if !errors.Is(err, detection.ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
	if response.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", response.StatusCode(err))
	}
	if deps.detector.callCount() != 0 {
		t.Error("detector called for an oversized image")
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestProcessUpload_ImageDetectorError(t *testing.T) {
	deps := &testDeps{detector: &fakeDetector{err: errors.New("model offline")}}
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "hand.png", bytes.NewReader(pngBytes(t, 16, 16)))
	if !errors.Is(err, detection.ErrProcessing) {
		t.Fatalf("err = %v, want ErrProcessing", err)
	}
	if response.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", response.StatusCode(err))
	}
	if !strings.Contains(err.Error(), "model offline") {
		t.Errorf("err = %q, want detector cause", err)
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestProcessUpload_Video(t *testing.T) {
	deps := &testDeps{
		detector: &fakeDetector{
			labels: map[int]string{0: "tôi", 1: "đi"},
			result: []entity.RawDetection{{ClassID: 0, Confidence: 0.9, BBox: []float64{0, 0, 4, 4}}},
		},
		video: &fakeVideo{source: &fakeSource{frames: 12, fps: 24}},
	}
	svc := newTestService(t, deps)

	resp, err := svc.ProcessUpload(context.Background(), "sign.mov", strings.NewReader("video bytes"))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}

	if resp.Type != entity.MediaTypeVideo {
		t.Errorf("type = %s", resp.Type)
	}
	frames, ok := resp.Detections.([]entity.FrameResult)
	if !ok || len(frames) != 12 {
		t.Fatalf("unexpected detections %#v", resp.Detections)
	}
	if resp.FPS == nil || *resp.FPS != 24 {
		t.Errorf("fps = %v", resp.FPS)
	}
	if resp.Sentence != "tôi" {
		t.Errorf("sentence = %q", resp.Sentence)
	}
	if resp.VideoPath != filepath.ToSlash(filepath.Join(deps.outDir, "sign.mp4")) {
		t.Errorf("video path = %q", resp.VideoPath)
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning %q", resp.Warning)
	}

	out := dirEntries(t, deps.outDir)
	if len(out) != 1 || out[0] != "sign.mp4" {
		t.Errorf("output dir = %v, want only sign.mp4", out)
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
	if !deps.video.source.closed {
		t.Error("video source not closed")
	}
}

func TestProcessUpload_VideoWithoutOutput(t *testing.T) {
	deps := &testDeps{video: &fakeVideo{
		source: &fakeSource{frames: 2, fps: 30},
		writer: &fakeWriter{noFile: true},
	}}
	svc := newTestService(t, deps)

	resp, err := svc.ProcessUpload(context.Background(), "a.mp4", strings.NewReader("v"))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if resp.Warning != "No output video was generated" || resp.VideoPath != "" {
		t.Errorf("expected warning without video path, got %+v", resp)
	}
	if deps.video.converted {
		t.Error("conversion attempted without an intermediate video")
	}
}

func TestProcessUpload_KeepsAviWhenMP4Missing(t *testing.T) {
	deps := &testDeps{video: &fakeVideo{
		source:  &fakeSource{frames: 2, fps: 30},
		skipMP4: true,
	}}
	svc := newTestService(t, deps)

	resp, err := svc.ProcessUpload(context.Background(), "a.mp4", strings.NewReader("v"))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if resp.Warning == "" {
		t.Error("expected warning when conversion produced nothing")
	}
	if _, err := os.Stat(filepath.Join(deps.outDir, "a.avi")); err != nil {
		t.Error("intermediate video removed although no mp4 exists")
	}
}

func TestProcessUpload_ConversionFailure(t *testing.T) {
	deps := &testDeps{video: &fakeVideo{
		source:     &fakeSource{frames: 2, fps: 30},
		convertErr: errors.New("codec missing"),
	}}
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "a.mp4", strings.NewReader("v"))
	if !errors.Is(err, detection.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
	if response.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", response.StatusCode(err))
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestProcessUpload_InvalidVideo(t *testing.T) {
	deps := &testDeps{video: &fakeVideo{openErr: errors.New("moov atom not found")}}
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "bad.mp4", strings.NewReader("junk"))
	if !errors.Is(err, detection.ErrInvalidVideo) {
		t.Fatalf("err = %v, want ErrInvalidVideo", err)
	}
	if names := dirEntries(t, deps.cfg.TempDir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestProcessUpload_EmptyVideo(t *testing.T) {
	deps := &testDeps{video: &fakeVideo{source: &fakeSource{frames: 0, fps: 30}}}
	svc := newTestService(t, deps)

	_, err := svc.ProcessUpload(context.Background(), "empty.mp4", strings.NewReader("x"))
	if !errors.Is(err, detection.ErrNoVideoFrames) {
		t.Fatalf("err = %v, want ErrNoVideoFrames", err)
	}
	if !deps.video.source.closed {
		t.Error("source not closed")
	}
}

func TestProcessUpload_ClearsPreviousRun(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)

	if _, err := svc.ProcessUpload(context.Background(), "first.png", bytes.NewReader(pngBytes(t, 8, 8))); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessUpload(context.Background(), "second.png", bytes.NewReader(pngBytes(t, 8, 8))); err != nil {
		t.Fatal(err)
	}

	out := dirEntries(t, deps.outDir)
	if len(out) != 1 || out[0] != "second.jpg" {
		t.Errorf("output dir = %v, want only second.jpg", out)
	}
}
