package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	appointmentsCreated  *prometheus.CounterVec
	sequenceConflicts    prometheus.Counter
	sequenceExhausted    prometheus.Counter
	paymentConfirmations *prometheus.CounterVec
	sessionsCreated      prometheus.Counter
	persistLatency       prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		appointmentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docfinder",
			Subsystem: "appointments",
			Name:      "created_total",
			Help:      "Appointments persisted, by booking path",
		}, []string{"path"}),
		sequenceConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docfinder",
			Subsystem: "appointments",
			Name:      "sequence_conflicts_total",
			Help:      "Numbering unique-constraint conflicts that triggered a retry",
		}),
		sequenceExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docfinder",
			Subsystem: "appointments",
			Name:      "sequence_exhausted_total",
			Help:      "Appointments rejected after exhausting numbering attempts",
		}),
		paymentConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docfinder",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Deferred booking confirmations, by outcome",
		}, []string{"outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docfinder",
			Subsystem: "payments",
			Name:      "sessions_created_total",
			Help:      "Checkout sessions created for deferred bookings",
		}),
		persistLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docfinder",
			Subsystem: "appointments",
			Name:      "persist_latency_seconds",
			Help:      "Latency of persist-and-sequence including retries",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.appointmentsCreated,
		m.sequenceConflicts,
		m.sequenceExhausted,
		m.paymentConfirmations,
		m.sessionsCreated,
		m.persistLatency,
	)
	return m
}

func (m *BookingMetrics) ObserveAppointmentCreated(path string) {
	if m == nil {
		return
	}
	m.appointmentsCreated.WithLabelValues(path).Inc()
}

func (m *BookingMetrics) ObserveSequenceConflict() {
	if m == nil {
		return
	}
	m.sequenceConflicts.Inc()
}

func (m *BookingMetrics) ObserveSequenceExhausted() {
	if m == nil {
		return
	}
	m.sequenceExhausted.Inc()
}

func (m *BookingMetrics) ObservePaymentConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.paymentConfirmations.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *BookingMetrics) ObservePersistLatency(seconds float64) {
	if m == nil {
		return
	}
	m.persistLatency.Observe(seconds)
}
