// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Name:      "posts_created_total",
		Help:      "Posts persisted, by kind.",
	}, []string{"kind"})

	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Name:      "like_toggles_total",
		Help:      "Successful like toggles, by resulting state.",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Name:      "events_published_total",
		Help:      "Push events queued for fan-out, by type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Name:      "events_dropped_total",
		Help:      "Push events dropped because the broadcast queue was full.",
	}, []string{"type"})

	SlowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "murmur",
		Name:      "slow_viewers_dropped_total",
		Help:      "Viewers disconnected because their send buffer was full.",
	})

	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "murmur",
		Name:      "connected_viewers",
		Help:      "Currently connected push-channel viewers.",
	})
)
