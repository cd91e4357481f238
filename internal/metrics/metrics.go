// Package metrics exposes Prometheus instrumentation for the audio pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadTotal tracks upload outcomes by result and rejection reason.
	UploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocalis_upload_total",
		Help: "Total number of upload attempts by result and reason",
	}, []string{"result", "reason"})

	// UploadBytes tracks the size distribution of accepted uploads.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vocalis_upload_bytes",
		Help:    "Size of accepted uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	// ProbeTotal tracks format probe verdicts.
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocalis_probe_total",
		Help: "Total number of format probes by verdict",
	}, []string{"verdict"})

	// TranscodeTotal tracks conversion outcomes. A "fallback" result means the
	// original file was kept after a failed conversion.
	TranscodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocalis_transcode_total",
		Help: "Total number of transcode attempts by result",
	}, []string{"result"})

	// TranscodeDuration tracks the wall-clock cost of external conversions.
	TranscodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vocalis_transcode_duration_seconds",
		Help:    "Duration of external transcode invocations",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
	})

	// StreamRequestTotal tracks stream serving by status code and ranged-ness.
	StreamRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocalis_stream_request_total",
		Help: "Total number of stream requests by status and range usage",
	}, []string{"status", "ranged"})

	// StreamBytesTotal counts bytes piped to streaming clients.
	StreamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocalis_stream_bytes_total",
		Help: "Total bytes served by the range streamer",
	})
)

// IncUpload records an upload attempt outcome.
func IncUpload(result, reason string) {
	UploadTotal.WithLabelValues(result, reason).Inc()
}

// ObserveUploadBytes records the size of an accepted upload.
func ObserveUploadBytes(n int64) {
	UploadBytes.Observe(float64(n))
}

// IncProbe records a probe verdict.
func IncProbe(verdict string) {
	ProbeTotal.WithLabelValues(verdict).Inc()
}

// ObserveTranscode records a transcode attempt and its duration.
func ObserveTranscode(result string, d time.Duration) {
	TranscodeTotal.WithLabelValues(result).Inc()
	TranscodeDuration.Observe(d.Seconds())
}

// IncStreamRequest records a stream request outcome.
func IncStreamRequest(status int, ranged bool) {
	StreamRequestTotal.WithLabelValues(strconv.Itoa(status), strconv.FormatBool(ranged)).Inc()
}

// AddStreamBytes counts bytes written to a streaming client.
func AddStreamBytes(n int64) {
	if n > 0 {
		StreamBytesTotal.Add(float64(n))
	}
}
