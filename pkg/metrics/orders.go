package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order state transitions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_state_transitions_total",
		Help: "Order state transitions by source and target state.",
	}, []string{"from", "to"})
	reg.MustRegister(transitions)
	return &OrderMetrics{transitions: transitions}
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
