package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/pkg/db"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnknown              = "unknown"
)

const (
	LockResourceDocument       = "document"
	LockResourceNumberSequence = "number_sequence"
)

// EngineMetrics captures document engine health signals scraped by Prometheus.
type EngineMetrics struct {
	transitions       *prometheus.CounterVec
	operationErrors   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lockWait          *prometheus.HistogramVec
	numbersAllocated  *prometheus.CounterVec
	hashMismatches    prometheus.Counter
	lockWaitObserver  map[string]prometheus.Observer
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the singleton engine metrics registry using config labels.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "docledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docledger_lifecycle_transitions_total",
		Help:        "Committed document lifecycle transitions.",
		ConstLabels: constLabels,
	}, []string{"doc_type", "from", "to"})
	operationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docledger_operation_errors_total",
		Help:        "Engine operation failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "docledger_operation_duration_seconds",
		Help:        "Engine operation latency including transaction commit.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "docledger_db_lock_wait_seconds",
		Help:        "Time spent acquiring SELECT FOR UPDATE row locks.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"resource"})
	numbersAllocated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "docledger_numbers_allocated_total",
		Help:        "Document numbers handed out by the sequence allocator.",
		ConstLabels: constLabels,
	}, []string{"doc_type"})
	hashMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "docledger_official_copy_hash_mismatch_total",
		Help:        "Sends or verifications whose live content differs from the latest official copy.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		transitions,
		operationErrors,
		operationDuration,
		lockWait,
		numbersAllocated,
		hashMismatches,
	)

	return &EngineMetrics{
		transitions:       transitions,
		operationErrors:   operationErrors,
		operationDuration: operationDuration,
		lockWait:          lockWait,
		numbersAllocated:  numbersAllocated,
		hashMismatches:    hashMismatches,
		lockWaitObserver: map[string]prometheus.Observer{
			LockResourceDocument:       lockWait.WithLabelValues(LockResourceDocument),
			LockResourceNumberSequence: lockWait.WithLabelValues(LockResourceNumberSequence),
		},
	}
}

func (m *EngineMetrics) IncTransition(docType, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(docType, from, to).Inc()
}

// ObserveOperation records latency and, on failure, the classified reason.
func (m *EngineMetrics) ObserveOperation(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(operation, ClassifyReason(err)).Inc()
	}
}

func (m *EngineMetrics) ObserveLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.lockWaitObserver[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

func (m *EngineMetrics) IncNumberAllocated(docType string) {
	if m == nil {
		return
	}
	m.numbersAllocated.WithLabelValues(docType).Inc()
}

func (m *EngineMetrics) IncHashMismatch() {
	if m == nil {
		return
	}
	m.hashMismatches.Inc()
}

// ClassifyReason maps operation errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if db.IsLockTimeout(err) {
		return ReasonDBLockTimeout
	}
	if db.IsSerializationFailure(err) {
		return ReasonSerializationFailure
	}
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		return string(kind)
	}
	if db.IsDuplicateKeyErr(err) {
		return ReasonUniqueViolation
	}
	return ReasonUnknown
}
