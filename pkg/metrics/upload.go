package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UploadMetrics collects upload lifecycle counters. A nil value is
// valid and records nothing.
type UploadMetrics struct {
	sessionsCreated  prometheus.Counter
	chunksTotal      *prometheus.CounterVec
	chunkDuration    prometheus.Histogram
	chunkBytes       prometheus.Histogram
	completionsTotal *prometheus.CounterVec
	abortsTotal      *prometheus.CounterVec
	reaperSweeps     prometheus.Counter
	reapedSessions   prometheus.Counter
	jobsEnqueued     *prometheus.CounterVec
}

// NewUploadMetrics creates the upload lifecycle collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewUploadMetrics() *UploadMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &UploadMetrics{
		sessionsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "reelforge_upload_sessions_created_total",
				Help: "Total number of upload sessions created",
			},
		),
		chunksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_upload_chunks_total",
				Help: "Total chunk PUT outcomes by result",
			},
			[]string{"result"}, // stored, corrected, probe, error
		),
		chunkDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "reelforge_upload_chunk_duration_milliseconds",
				Help: "End-to-end duration of accepted chunk PUTs in milliseconds",
				Buckets: []float64{
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s
					15000, // 15s
					60000, // 60s
				},
			},
		),
		chunkBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "reelforge_upload_chunk_bytes",
				Help: "Distribution of accepted chunk sizes",
				Buckets: []float64{
					1 << 20,   // 1MiB
					5 << 20,   // 5MiB
					8 << 20,   // 8MiB - minimum chunk size
					16 << 20,  // 16MiB
					64 << 20,  // 64MiB
					256 << 20, // 256MiB
				},
			},
		),
		completionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_upload_completions_total",
				Help: "Total upload completion attempts by status",
			},
			[]string{"status"}, // success, error
		),
		abortsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_upload_aborts_total",
				Help: "Total aborted sessions by reason",
			},
			[]string{"reason"}, // client, expired
		),
		reaperSweeps: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "reelforge_reaper_sweeps_total",
				Help: "Total reaper sweep runs",
			},
		),
		reapedSessions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "reelforge_reaper_reaped_sessions_total",
				Help: "Total sessions aborted by the reaper",
			},
		),
		jobsEnqueued: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_jobs_enqueued_total",
				Help: "Total transcode job enqueue attempts by status",
			},
			[]string{"status"}, // success, error
		),
	}
}

// RecordSessionCreated counts one new session.
func (m *UploadMetrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// RecordChunk counts one chunk PUT outcome. Accepted chunks also record
// size and duration.
func (m *UploadMetrics) RecordChunk(result string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.chunksTotal.WithLabelValues(result).Inc()
	if result == "stored" {
		m.chunkDuration.Observe(duration.Seconds() * 1000)
		m.chunkBytes.Observe(float64(bytes))
	}
}

// RecordCompletion counts one completion attempt.
func (m *UploadMetrics) RecordCompletion(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.completionsTotal.WithLabelValues(status).Inc()
}

// RecordAbort counts one aborted session.
func (m *UploadMetrics) RecordAbort(reason string) {
	if m == nil {
		return
	}
	m.abortsTotal.WithLabelValues(reason).Inc()
}

// RecordReaperSweep counts one sweep and the sessions it reaped.
func (m *UploadMetrics) RecordReaperSweep(reaped int) {
	if m == nil {
		return
	}
	m.reaperSweeps.Inc()
	m.reapedSessions.Add(float64(reaped))
}

// RecordJobEnqueue counts one enqueue attempt.
func (m *UploadMetrics) RecordJobEnqueue(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobsEnqueued.WithLabelValues(status).Inc()
}
