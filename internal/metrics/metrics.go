package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "millwatch",
			Name:      "ticks_total",
			Help:      "Total number of completed simulation ticks.",
		},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "millwatch",
			Name:      "tick_seconds",
			Help:      "Simulation tick duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	predictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "millwatch",
			Name:      "predictions_total",
			Help:      "Total number of risk predictions computed.",
		},
	)

	equipmentFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "millwatch",
			Name:      "equipment_failures_total",
			Help:      "Equipment updates skipped inside a tick due to an error or panic.",
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "millwatch",
			Name:      "alerts_total",
			Help:      "Alerts created, partitioned by severity.",
		},
		[]string{"severity"},
	)

	highRiskEquipment = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "millwatch",
			Name:      "high_risk_equipment",
			Help:      "Equipment units currently categorized high risk.",
		},
	)
)

// Register attaches millwatch collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ticksTotal,
		tickDurationSeconds,
		predictionsTotal,
		equipmentFailuresTotal,
		alertsTotal,
		highRiskEquipment,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// RegisterConnectionsGauge exposes the live WebSocket connection count
// sourced from fn.
func RegisterConnectionsGauge(reg prometheus.Registerer, fn func() float64) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "millwatch",
			Name:      "ws_connections",
			Help:      "Connected WebSocket clients.",
		},
		fn,
	)
	if err := reg.Register(gauge); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveTick records one completed tick, its duration, and the high-risk
// population it left behind.
func ObserveTick(duration time.Duration, highRisk int) {
	if duration < 0 {
		duration = 0
	}
	ticksTotal.Inc()
	tickDurationSeconds.Observe(duration.Seconds())
	highRiskEquipment.Set(float64(highRisk))
}

// RecordPrediction counts one model evaluation.
func RecordPrediction() {
	predictionsTotal.Inc()
}

// RecordEquipmentFailure counts one equipment update skipped inside a tick.
func RecordEquipmentFailure() {
	equipmentFailuresTotal.Inc()
}

// RecordAlert counts one created alert by severity.
func RecordAlert(severity string) {
	alertsTotal.WithLabelValues(severity).Inc()
}
