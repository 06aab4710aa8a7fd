package swap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Operations   *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Volume       *prometheus.CounterVec
	FeeCollected *prometheus.CounterVec
	ActiveOrders prometheus.Gauge
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperswap_operations_total",
				Help: "Engine operations by result code.",
			},
			[]string{"op", "result"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hyperswap_operation_duration_seconds",
				Help:    "Engine operation latency in seconds, commit included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperswap_settled_volume_total",
				Help: "Base units moved to takers and swap recipients, by token.",
			},
			[]string{"token"},
		),
		FeeCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperswap_fee_collected_total",
				Help: "Protocol fee paid to the fee recipient, by token.",
			},
			[]string{"token"},
		),
		ActiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hyperswap_active_orders",
			Help: "Orders that can still be filled.",
		}),
	}

	registry.MustRegister(m.Operations, m.Latency, m.Volume, m.FeeCollected, m.ActiveOrders)
	return m
}

func (m *Metrics) ObserveOperation(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.Latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSettlement(token string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.Volume.WithLabelValues(token).Add(float64(amount))
}

func (m *Metrics) ObserveFee(token string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.FeeCollected.WithLabelValues(token).Add(float64(amount))
}

func (m *Metrics) SetActiveOrders(n int) {
	if m == nil {
		return
	}
	m.ActiveOrders.Set(float64(n))
}

func (m *Metrics) AddActiveOrders(delta int) {
	if m == nil {
		return
	}
	m.ActiveOrders.Add(float64(delta))
}
