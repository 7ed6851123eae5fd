// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fiat_bridge"

type Metrics struct {
	registry *prometheus.Registry

	// Settlement
	PayoutsRecorded   prometheus.Counter
	PayoutsDuplicated prometheus.Counter
	PayoutsConfirmed  prometheus.Counter
	DepositsRecorded  prometheus.Counter
	RequestsRejected  *prometheus.CounterVec // by reason

	// Chain submitter
	MintSubmissions *prometheus.CounterVec // by result
	MintLatency     prometheus.Histogram

	// Chain event monitor
	EventsReceived   prometheus.Counter
	EventsForwarded  prometheus.Counter
	ForwardErrors    prometheus.Counter
	Resubscriptions  prometheus.Counter
	MonitorState     prometheus.Gauge // 1 subscribed, 0 disconnected
	LastScannedBlock prometheus.Gauge

	// Notifier
	Observers            prometheus.Gauge
	NotificationsSent    prometheus.Counter
	NotificationsDropped prometheus.Counter
}

// New creates all collectors on a private registry so that several
// instances can live in one process (tests).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PayoutsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_recorded_total",
			Help:      "Payout records created in status pending",
		}),
		PayoutsDuplicated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_duplicated_total",
			Help:      "Payout events already recorded for the same source log",
		}),
		PayoutsConfirmed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_confirmed_total",
			Help:      "Payouts moved from pending to sent",
		}),
		DepositsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_recorded_total",
			Help:      "Deposits recorded after a successful mint",
		}),
		RequestsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Settlement requests rejected by reason",
		}, []string{"reason"}),

		MintSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mint_submissions_total",
			Help:      "Mint transactions by result",
		}, []string{"result"}),
		MintLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mint_latency_seconds",
			Help:      "Time from sending a mint tx to its receipt",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120},
		}),

		EventsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_events_received_total",
			Help:      "FiatPayout logs decoded by the monitor",
		}),
		EventsForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_events_forwarded_total",
			Help:      "FiatPayout events accepted by the settlement service",
		}),
		ForwardErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_forward_errors_total",
			Help:      "FiatPayout events the settlement service refused",
		}),
		Resubscriptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_resubscriptions_total",
			Help:      "Subscriptions re-established after a transport failure",
		}),
		MonitorState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_subscribed",
			Help:      "1 if the monitor holds a live subscription",
		}),
		LastScannedBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_last_scanned_block",
			Help:      "Block of the last forwarded event",
		}),

		Observers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifier_observers",
			Help:      "Currently connected observers",
		}),
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_messages_sent_total",
			Help:      "Status messages queued to observers",
		}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_messages_dropped_total",
			Help:      "Status messages dropped because an observer was slow",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
