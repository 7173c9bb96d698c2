package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters and histograms for the booking engine
// and the notification pipeline. A nil *SchedulingMetrics is valid and
// records nothing.
type SchedulingMetrics struct {
	operationsTotal *prometheus.CounterVec
	slotQuery       *prometheus.HistogramVec
	dispatchTotal   *prometheus.CounterVec
	remindersTotal  prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		slotQuery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "scheduling",
			Name:      "slot_query_seconds",
			Help:      "Latency of available slot queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Domain events published and dispatched",
		}, []string{"event_type", "status"}),
		remindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Booking reminders emitted by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.slotQuery, m.dispatchTotal, m.remindersTotal)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveSlotQuery(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.slotQuery.WithLabelValues(outcome).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveDispatch(eventType, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(eventType, status).Inc()
}

func (m *SchedulingMetrics) ObserveReminders(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.remindersTotal.Add(float64(n))
}
