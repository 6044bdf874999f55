// Package metrics exposes prometheus collectors for the decision engine
// and the versioned store. All collectors live on a private registry so
// tests can run side by side without duplicate registration panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates engine counters. A nil *Collector is valid and
// drops every observation, so wiring metrics stays optional.
type Collector struct {
	registry *prometheus.Registry

	recordsProcessed *prometheus.CounterVec
	recordsFailed    prometheus.Counter
	matchDuration    prometheus.Histogram
	versionsCreated  prometheus.Counter
	draftsRegistered prometheus.Counter
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		recordsProcessed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "portatrack_records_processed_total",
			Help: "Records processed, labeled by decision outcome",
		}, []string{"outcome"}),
		recordsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "portatrack_records_failed_total",
			Help: "Records whose processing or persistence errored",
		}),
		matchDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "portatrack_match_duration_seconds",
			Help:    "Time taken to match one record against the rule set",
			Buckets: prometheus.DefBuckets,
		}),
		versionsCreated: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "portatrack_versions_created_total",
			Help: "New record versions written to the store",
		}),
		draftsRegistered: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "portatrack_draft_rules_registered_total",
			Help: "Draft rules auto-registered for unmapped records",
		}),
	}
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordProcessed counts one processed record by outcome
// ("matched", "unmapped", "rejected").
func (c *Collector) RecordProcessed(outcome string) {
	if c == nil {
		return
	}
	c.recordsProcessed.WithLabelValues(outcome).Inc()
}

// RecordFailed counts one record-level failure.
func (c *Collector) RecordFailed() {
	if c == nil {
		return
	}
	c.recordsFailed.Inc()
}

// ObserveMatch records the latency of one match attempt.
func (c *Collector) ObserveMatch(d time.Duration) {
	if c == nil {
		return
	}
	c.matchDuration.Observe(d.Seconds())
}

// VersionCreated counts one new version written to the store.
func (c *Collector) VersionCreated() {
	if c == nil {
		return
	}
	c.versionsCreated.Inc()
}

// DraftRegistered counts one auto-registered draft rule.
func (c *Collector) DraftRegistered() {
	if c == nil {
		return
	}
	c.draftsRegistered.Inc()
}
