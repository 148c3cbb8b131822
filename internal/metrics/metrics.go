package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects engine counters on a private registry. The host application
// decides whether and where to expose them.
type Metrics struct {
	Registry *prometheus.Registry

	ReconnectAttempts prometheus.Counter
	EventsDispatched  *prometheus.CounterVec
	PushesRendered    prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	OfflineResponses  prometheus.Counter
	BadgeValue        prometheus.Gauge
}

// New creates and registers the engine's metric set.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "channel",
			Name:      "reconnect_attempts_total",
			Help:      "total reconnect attempts of the realtime channel",
		}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "channel",
			Name:      "events_dispatched_total",
			Help:      "inbound realtime events dispatched, by kind",
		}, []string{"kind"}),
		PushesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "worker",
			Name:      "pushes_rendered_total",
			Help:      "platform notifications rendered from push payloads",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "worker",
			Name:      "cache_hits_total",
			Help:      "asset cache hits during fetch interception",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "worker",
			Name:      "cache_misses_total",
			Help:      "asset cache misses during fetch interception",
		}),
		OfflineResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "worker",
			Name:      "offline_responses_total",
			Help:      "structured offline responses synthesized for failed API calls",
		}),
		BadgeValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notify",
			Subsystem: "sync",
			Name:      "badge_value",
			Help:      "current unread count driving the platform badge",
		}),
	}

	m.Registry.MustRegister(
		m.ReconnectAttempts,
		m.EventsDispatched,
		m.PushesRendered,
		m.CacheHits,
		m.CacheMisses,
		m.OfflineResponses,
		m.BadgeValue,
	)
	return m
}
