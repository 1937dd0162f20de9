package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

// ExtractionMetrics records engine state timings and final outcomes. Its
// ObserveState method matches usecase.StateObserver.
type ExtractionMetrics struct {
	service string

	outcomes      *prometheus.CounterVec
	stateDuration *prometheus.HistogramVec
	passages      prometheus.Histogram
	unrecorded    prometheus.Counter
}

func NewExtractionMetrics(registry prometheus.Registerer, service string) *ExtractionMetrics {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "outcomes_total",
			Help:      "Finished extractions by outcome kind.",
		},
		[]string{"service", "outcome"},
	)
	stateDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "state_duration_seconds",
			Help:      "Time spent per engine state.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "state", "status"},
	)
	passages := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "extraction",
			Name:        "passages",
			Help:        "Passages selected per successful extraction.",
			Buckets:     []float64{0, 1, 2, 5, 10, 15, 20, 40},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	unrecorded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "extraction",
			Name:        "turns_not_recorded_total",
			Help:        "Successful extractions whose conversation turn could not be stored.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	registry.MustRegister(outcomes, stateDuration, passages, unrecorded)

	return &ExtractionMetrics{
		service:       service,
		outcomes:      outcomes,
		stateDuration: stateDuration,
		passages:      passages,
		unrecorded:    unrecorded,
	}
}

func (m *ExtractionMetrics) ObserveState(state domain.ExtractionState, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stateDuration.WithLabelValues(m.service, string(state), status).Observe(elapsed.Seconds())

	switch state {
	case domain.StateDone:
		m.outcomes.WithLabelValues(m.service, "success").Inc()
	case domain.StateFailed:
		m.outcomes.WithLabelValues(m.service, domain.FailureKind(err)).Inc()
	}
}

// ObserveResult records what only the caller sees: selected passages and a
// turn that failed to persist.
func (m *ExtractionMetrics) ObserveResult(result *domain.ExtractionResult, err error) {
	if result == nil {
		return
	}
	m.passages.Observe(float64(len(result.Passages)))
	if domain.IsKind(err, domain.ErrConversationStore) {
		m.unrecorded.Inc()
	}
}
