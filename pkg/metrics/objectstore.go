package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reelforge/reelforge/pkg/store/object"
)

// objectStoreMetrics is the Prometheus implementation of object.Metrics.
type objectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	activeUploads     prometheus.Gauge
}

// NewObjectStoreMetrics creates a Prometheus-backed object.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called);
// the store accepts a nil collector with zero overhead.
func NewObjectStoreMetrics() object.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &objectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_objectstore_operations_total",
				Help: "Total number of object store operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "reelforge_objectstore_operation_duration_milliseconds",
				Help: "Duration of object store operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - metadata operations
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s - part uploads
					10000, // 10s
					30000, // 30s - large parts on slow links
					60000, // 60s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelforge_objectstore_bytes_transferred_total",
				Help: "Total bytes transferred via object store operations",
			},
			[]string{"operation"},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "reelforge_objectstore_active_multipart_uploads",
				Help: "Current number of in-flight multipart uploads",
			},
		),
	}
}

func (m *objectStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000)
}

func (m *objectStoreMetrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

func (m *objectStoreMetrics) RecordActiveUpload(delta int) {
	if m == nil {
		return
	}
	m.activeUploads.Add(float64(delta))
}
