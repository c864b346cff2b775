package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.FrameReceived()
	m.FrameSkipped()
	m.AddDetections(3)
	m.UploadProcessed(true)
	m.SentenceCache(false)
	m.StreamOpened()
	m.StreamClosed()
	m.ObserveOracle("detect", time.Millisecond)
}

func TestCountersExported(t *testing.T) {
	m := New()

	m.FrameReceived()
	m.FrameReceived()
	m.FrameSkipped()
	m.AddDetections(4)
	m.AddDetections(0)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.ObserveOracle("detect", 40*time.Millisecond)

	expected := `
# HELP vsl_stream_frames_received_total Frames received on stream connections
# TYPE vsl_stream_frames_received_total counter
vsl_stream_frames_received_total 2
# HELP vsl_stream_frames_skipped_total Frames skipped by the sampling gate
# TYPE vsl_stream_frames_skipped_total counter
vsl_stream_frames_skipped_total 1
# HELP vsl_detections_total Detections returned after filtering
# TYPE vsl_detections_total counter
vsl_detections_total 4
# HELP vsl_stream_active_connections Open stream connections
# TYPE vsl_stream_active_connections gauge
vsl_stream_active_connections 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"vsl_stream_frames_received_total",
		"vsl_stream_frames_skipped_total",
		"vsl_detections_total",
		"vsl_stream_active_connections",
	)
	if err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(m.oracleLatency); n != 1 {
		t.Errorf("oracle latency series = %d, want 1", n)
	}
}
