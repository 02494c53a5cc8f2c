// Package metrics holds the prometheus collectors for session and blob store
// operations. A nil *Registry is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Registry holds all metrics for the encrypted stores.
type Registry struct {
	SessionOperationsTotal   *prometheus.CounterVec
	SessionOperationDuration *prometheus.HistogramVec
	BlobSizeBytes            *prometheus.GaugeVec
	UnlockFailuresTotal      *prometheus.CounterVec
	SaltInitializationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every collector initialized. An empty
// namespace defaults to "casevault".
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "casevault"
	}

	r := &Registry{registry: prometheus.NewRegistry()}
	r.initSessionMetrics(namespace)

	return r
}

func (r *Registry) initSessionMetrics(namespace string) {
	r.SessionOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Total number of session operations",
		},
		[]string{"store", "operation", "status"},
	)

	r.SessionOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_operation_duration_seconds",
			Help:      "Session operation duration in seconds, including key derivation",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"store", "operation"},
	)

	r.BlobSizeBytes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blob_size_bytes",
			Help:      "Size of the last encrypted blob written or read",
		},
		[]string{"store"},
	)

	r.UnlockFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_failures_total",
			Help:      "Total number of opens rejected by authentication or throttling",
		},
		[]string{"store", "reason"}, // auth, throttled
	)

	r.SaltInitializationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salt_initializations_total",
			Help:      "Total number of salt loads by outcome",
		},
		[]string{"result"}, // created, existing
	)
}

// RecordOperation records one session operation with its duration.
func (r *Registry) RecordOperation(store, operation string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.SessionOperationsTotal.WithLabelValues(store, operation, status).Inc()
	r.SessionOperationDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
}

// SetBlobSize records the size of a store's encrypted blob.
func (r *Registry) SetBlobSize(store string, size int) {
	if r == nil {
		return
	}
	r.BlobSizeBytes.WithLabelValues(store).Set(float64(size))
}

// RecordUnlockFailure counts a rejected open.
func (r *Registry) RecordUnlockFailure(store, reason string) {
	if r == nil {
		return
	}
	r.UnlockFailuresTotal.WithLabelValues(store, reason).Inc()
}

// RecordSalt counts a salt load; created is true when this call generated it.
func (r *Registry) RecordSalt(created bool) {
	if r == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	r.SaltInitializationsTotal.WithLabelValues(result).Inc()
}

// Gatherer returns the underlying prometheus registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}
