package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the raffle engine
var (
	DrawsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_draws_total",
			Help: "Total number of draw operations by raffle type and outcome",
		},
		[]string{"type", "outcome"},
	)

	WinnersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_winners_total",
			Help: "Total number of winners selected by raffle type",
		},
		[]string{"type"},
	)

	DrawDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raffle_draw_duration_seconds",
			Help:    "Duration of draw transactions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	NotificationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_notification_failures_total",
			Help: "Total number of winner notifications that could not be enqueued",
		},
	)

	InconsistenciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_stock_inconsistencies_total",
			Help: "Total number of stock inconsistencies detected",
		},
	)
)

// Outcome labels for DrawsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(DrawsTotal)
	prometheus.MustRegister(WinnersTotal)
	prometheus.MustRegister(DrawDuration)
	prometheus.MustRegister(NotificationFailuresTotal)
	prometheus.MustRegister(InconsistenciesTotal)
}
