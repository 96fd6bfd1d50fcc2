package relay

import (
	"github.com/peerdrop/relay/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerdrop",
		Name:      "connections",
		Help:      "Currently open websocket connections.",
	})
	metricJoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerdrop",
		Name:      "session_joins_total",
		Help:      "Session join attempts by outcome.",
	}, []string{"result"})
	metricRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerdrop",
		Name:      "relayed_messages_total",
		Help:      "Signaling messages forwarded to peers.",
	}, []string{"kind"})
	metricDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerdrop",
		Name:      "dropped_messages_total",
		Help:      "Signaling messages dropped before delivery.",
	}, []string{"reason"})
	metricRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerdrop",
		Name:      "rate_limited_total",
		Help:      "Operations denied by the rate limiter.",
	}, []string{"op"})
)

func registerMetrics(store *session.Store) {
	prometheus.MustRegister(
		metricConnections,
		metricJoins,
		metricRelayed,
		metricDropped,
		metricRateLimited,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "peerdrop",
			Name:      "sessions",
			Help:      "Live sessions in the store.",
		}, func() float64 { return float64(store.Len()) }),
	)
}
