// Package metrics exposes Prometheus collectors for the membership engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal      *prometheus.CounterVec
	decisionsTotal        *prometheus.CounterVec
	budgetDeniedTotal     *prometheus.CounterVec
	indexRefreshesTotal   *prometheus.CounterVec
	scrapeFetchesTotal    *prometheus.CounterVec
	remoteCallsTotal      *prometheus.CounterVec
	scrapeRateLimitDelays *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_resolutions_total",
				Help: "Reference resolutions, labeled by the source that produced the identifier.",
			},
			[]string{"source"}, // cache | scrape | search | none
		)
		decisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_decisions_total",
				Help: "Membership decisions, labeled by the path that decided them.",
			},
			[]string{"path"}, // index | verify | warm | legacy | default | unresolved
		)
		budgetDeniedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_budget_denied_total",
				Help: "Direct remote checks skipped because a token bucket was empty.",
			},
			[]string{"bucket"}, // warm | verify
		)
		indexRefreshesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_index_refreshes_total",
				Help: "Subscription index refresh attempts by outcome.",
			},
			[]string{"outcome"}, // ok | failed | skipped
		)
		scrapeFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_scrape_fetches_total",
				Help: "Candidate document fetches, labeled by host and status class.",
			},
			[]string{"host", "status"},
		)
		remoteCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanwatch_remote_calls_total",
				Help: "Remote directory API calls by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)
		scrapeRateLimitDelays = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chanwatch_scrape_ratelimit_delay_seconds",
				Help:    "Delay introduced by the per-host scrape rate limiter.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
	})
}

// ObserveResolution records the source a reference resolution came from.
func ObserveResolution(source string) {
	if resolutionsTotal != nil {
		resolutionsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveDecision records which decision path answered a membership check.
func ObserveDecision(path string) {
	if decisionsTotal != nil {
		decisionsTotal.WithLabelValues(path).Inc()
	}
}

// ObserveBudgetDenied records a token-bucket denial.
func ObserveBudgetDenied(bucket string) {
	if budgetDeniedTotal != nil {
		budgetDeniedTotal.WithLabelValues(bucket).Inc()
	}
}

// ObserveIndexRefresh records a refresh attempt outcome.
func ObserveIndexRefresh(outcome string) {
	if indexRefreshesTotal != nil {
		indexRefreshesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveScrapeFetch records one candidate document fetch.
func ObserveScrapeFetch(host, status string) {
	if scrapeFetchesTotal != nil {
		scrapeFetchesTotal.WithLabelValues(host, status).Inc()
	}
}

// ObserveRemoteCall records one remote API call.
func ObserveRemoteCall(endpoint, outcome string) {
	if remoteCallsTotal != nil {
		remoteCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	}
}

// ObserveRateLimitDelay records time spent waiting on the per-host limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	if scrapeRateLimitDelays != nil {
		scrapeRateLimitDelays.WithLabelValues(host).Observe(d.Seconds())
	}
}
