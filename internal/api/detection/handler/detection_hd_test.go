package detectionHandler

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/detections", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := jsoniter.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestUpload(t *testing.T) {
	fps := 25.0
	svc := &fakeService{uploadResp: &detection.UploadResponse{
		Detections: []entity.FrameResult{},
		Type:       entity.MediaTypeVideo,
		Sentence:   "tôi đi học",
		FPS:        &fps,
		VideoPath:  "runs/detect/predict/clip.mp4",
	}}
	_, app := newTestHandler(svc)

	resp, err := app.Test(multipartRequest(t, "file", "clip.mp4", "video-bytes"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	if body["type"] != "video" || body["sentence"] != "tôi đi học" || body["fps"] != 25.0 {
		t.Errorf("unexpected body %v", body)
	}
	if body["video_path"] != "runs/detect/predict/clip.mp4" {
		t.Errorf("video_path = %v", body["video_path"])
	}
	if _, ok := body["warning"]; ok {
		t.Error("empty warning serialised")
	}
	if svc.uploadName != "clip.mp4" || svc.uploadBody != "video-bytes" {
		t.Errorf("service saw %q / %q", svc.uploadName, svc.uploadBody)
	}
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		svcErr     error
		wantStatus int
		wantError  string
	}{
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "other", "clip.mp4", "x")
			},
			wantStatus: 400,
			wantError:  "No file uploaded",
		},
		{
			name: "unsupported format",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "clip.gif", "x")
			},
			svcErr:     fmt.Errorf("%w. Allowed formats: .jpg", detection.ErrUnsupportedFormat),
			wantStatus: 400,
			wantError:  "Unsupported file format. Allowed formats: .jpg",
		},
		{
			name: "conversion failure",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "clip.mp4", "x")
			},
			svcErr:     fmt.Errorf("%w: exit status 1", detection.ErrConversion),
			wantStatus: 500,
			wantError:  "Failed to convert output video: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newTestHandler(&fakeService{uploadErr: tt.svcErr})

			resp, err := app.Test(tt.req(t), -1)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body map[string]string
			decodeBody(t, resp, &body)
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestGenerateSentence(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLabels []string
	}{
		{
			name:       "framed",
			body:       `{"detections":[{"frame_number":0,"timestamp":0,"detections":[{"class_name":"tôi","confidence":0.9,"bbox":[0,0,1,1]}]}]}`,
			wantStatus: 200,
			wantLabels: []string{"tôi"},
		},
		{
			name:       "flat",
			body:       `{"detections":[{"class_name":"a","confidence":0.9,"bbox":[0,0,1,1]},{"class_name":"b","confidence":0.9,"bbox":[0,0,1,1]}]}`,
			wantStatus: 200,
			wantLabels: []string{"a", "b"},
		},
		{name: "missing detections", body: `{}`, wantStatus: 400},
		{name: "bad detections", body: `{"detections":[1,2]}`, wantStatus: 400},
		{name: "not json", body: `{`, wantStatus: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			_, app := newTestHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/v1/detections/sentence", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != 200 {
				return
			}

			var body detection.SentenceResponse
			decodeBody(t, resp, &body)
			if body.Sentence != strings.Join(tt.wantLabels, " ") {
				t.Errorf("sentence = %q", body.Sentence)
			}
		})
	}
}

func TestResult(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("mp4-content"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("not found", func(t *testing.T) {
		_, app := newTestHandler(&fakeService{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/result", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body map[string]string
		decodeBody(t, resp, &body)
		if body["error"] != "No prediction files found" {
			t.Errorf("error = %q", body["error"])
		}
	})

	t.Run("video streamed", func(t *testing.T) {
		_, app := newTestHandler(&fakeService{artifact: &entity.Artifact{
			Path:        videoPath,
			Name:        "clip.mp4",
			Type:        entity.MediaTypeVideo,
			ContentType: "video/mp4",
		}})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/result", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("content type = %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); cd != "inline; filename=clip.mp4" {
			t.Errorf("content disposition = %q", cd)
		}
		data, _ := io.ReadAll(resp.Body)
		if string(data) != "mp4-content" {
			t.Errorf("body = %q", data)
		}
	})
}

func TestHistory(t *testing.T) {
	t.Run("limit forwarded", func(t *testing.T) {
		svc := &fakeService{}
		_, app := newTestHandler(svc)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/history?limit=5", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body map[string][]interface{}
		decodeBody(t, resp, &body)
		if runs, ok := body["runs"]; !ok || len(runs) != 0 {
			t.Errorf("runs = %v", body)
		}
		if svc.historyLimit != 5 {
			t.Errorf("limit = %d", svc.historyLimit)
		}
	})

	t.Run("limit out of range", func(t *testing.T) {
		_, app := newTestHandler(&fakeService{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/history?limit=500", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		_, app := newTestHandler(&fakeService{historyErr: detection.ErrHistoryUnavailable})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/history", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestStream_RequiresUpgrade(t *testing.T) {
	_, app := newTestHandler(&fakeService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/detections/stream", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
