// Package metrics exposes Prometheus collectors for the query cache, the
// task poller and scrape submissions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scooby"

type Metrics struct {
	CacheLookups       *prometheus.CounterVec
	CacheRevalidations *prometheus.CounterVec
	CacheFailures      *prometheus.CounterVec
	CacheDiscarded     *prometheus.CounterVec
	CacheEvictions     *prometheus.CounterVec

	PollTicks  *prometheus.CounterVec
	PollErrors *prometheus.CounterVec

	Submissions *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg gets a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by namespace and result (hit, stale, miss).",
		}, []string{"namespace", "result"}),
		CacheRevalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Network requests issued by the cache.",
		}, []string{"namespace"}),
		CacheFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "failures_total",
			Help:      "Failed cache requests.",
		}, []string{"namespace"}),
		CacheDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "discarded_responses_total",
			Help:      "Responses dropped because a newer request superseded them.",
		}, []string{"namespace"}),
		CacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed by invalidation.",
		}, []string{"namespace"}),
		PollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Snapshot fetches started by the task poller.",
		}, []string{"view"}),
		PollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "errors_total",
			Help:      "Snapshot fetches that failed.",
		}, []string{"view"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "submissions_total",
			Help:      "Scrape job submissions by outcome.",
		}, []string{"outcome"}),
	}
}
