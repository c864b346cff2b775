package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the detection pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Stream counters
	FramesReceived  atomic.Uint64
	FramesSkipped   atomic.Uint64
	FramesProcessed atomic.Uint64
	StreamErrors    atomic.Uint64
	ActiveStreams   atomic.Int64

	// Upload counters
	UploadsImage  atomic.Uint64
	UploadsVideo  atomic.Uint64
	UploadErrors  atomic.Uint64
	BatchFrames   atomic.Uint64
	DetectionsOut atomic.Uint64

	// Sentence assembly
	SentenceCacheHits   atomic.Uint64
	SentenceCacheMisses atomic.Uint64
	ParaphraseCalls     atomic.Uint64

	oracleLatency *prometheus.HistogramVec
	registry      *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"vsl_stream_frames_received_total", "Frames received on stream connections", &m.FramesReceived},
		{"vsl_stream_frames_skipped_total", "Frames skipped by the sampling gate", &m.FramesSkipped},
		{"vsl_stream_frames_processed_total", "Frames sent to the detection model from streams", &m.FramesProcessed},
		{"vsl_stream_errors_total", "Per message stream errors", &m.StreamErrors},
		{"vsl_uploads_image_total", "Image uploads processed", &m.UploadsImage},
		{"vsl_uploads_video_total", "Video uploads processed", &m.UploadsVideo},
		{"vsl_upload_errors_total", "Failed uploads", &m.UploadErrors},
		{"vsl_batch_frames_total", "Video frames processed in batch runs", &m.BatchFrames},
		{"vsl_detections_total", "Detections returned after filtering", &m.DetectionsOut},
		{"vsl_sentence_cache_hits_total", "Sentence cache hits", &m.SentenceCacheHits},
		{"vsl_sentence_cache_misses_total", "Sentence cache misses", &m.SentenceCacheMisses},
		{"vsl_paraphrase_calls_total", "Calls made to the paraphrase model", &m.ParaphraseCalls},
	}

	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vsl_stream_active_connections",
			Help: "Open stream connections",
		},
		func() float64 { return float64(m.ActiveStreams.Load()) },
	))

	m.oracleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vsl_oracle_latency_seconds",
			Help:    "Latency of detection and paraphrase model calls",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"oracle"},
	)
	m.registry.MustRegister(m.oracleLatency)
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Add(1)
}

func (m *Metrics) FrameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Add(1)
}

func (m *Metrics) FrameProcessed() {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(1)
}

func (m *Metrics) StreamError() {
	if m == nil {
		return
	}
	m.StreamErrors.Add(1)
}

func (m *Metrics) UploadProcessed(video bool) {
	if m == nil {
		return
	}
	if video {
		m.UploadsVideo.Add(1)
		return
	}
	m.UploadsImage.Add(1)
}

func (m *Metrics) UploadFailed() {
	if m == nil {
		return
	}
	m.UploadErrors.Add(1)
}

func (m *Metrics) BatchFrame() {
	if m == nil {
		return
	}
	m.BatchFrames.Add(1)
}

func (m *Metrics) AddDetections(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DetectionsOut.Add(uint64(n))
}

func (m *Metrics) SentenceCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SentenceCacheHits.Add(1)
		return
	}
	m.SentenceCacheMisses.Add(1)
}

func (m *Metrics) ParaphraseCalled() {
	if m == nil {
		return
	}
	m.ParaphraseCalls.Add(1)
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Add(1)
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Add(-1)
}

// ObserveOracle records one model call. oracle is "detect" or "paraphrase".
func (m *Metrics) ObserveOracle(oracle string, d time.Duration) {
	if m == nil {
		return
	}
	m.oracleLatency.WithLabelValues(oracle).Observe(d.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
