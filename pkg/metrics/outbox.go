package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts outbox deliveries by event type and result.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Outbox event deliveries by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(deliveries)
	return &OutboxMetrics{deliveries: deliveries}
}

// IncDelivery records result as one of delivered, failed or dropped.
func (m *OutboxMetrics) IncDelivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
