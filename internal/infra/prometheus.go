package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "depth"

// metricsCollector exposes Metrics to Prometheus by reading a Snapshot on
// every scrape, so the hot path keeps plain atomics.
type metricsCollector struct {
	m     *Metrics
	descs map[string]*prometheus.Desc
}

var counterHelp = map[string]string{
	"updates_applied_total":     "Incremental book updates applied",
	"snapshots_applied_total":   "Book snapshots applied",
	"updates_dropped_total":     "Stale or duplicate incrementals dropped",
	"updates_buffered_total":    "Incrementals buffered while resyncing",
	"inbox_drops_total":         "Updates discarded because an instrument inbox was full",
	"sequence_gaps_total":       "Sequence gaps detected",
	"checksum_mismatches_total": "Book checksum mismatches",
	"buffer_overflows_total":    "Resync buffer overflows",
	"replay_failures_total":     "Resync replays that hit a gap or checksum failure",
	"snapshot_requests_total":   "Snapshot requests emitted",
	"resyncs_completed_total":   "Books that returned to synced",
	"connection_losses_total":   "Connection loss signals received",
	"pricing_calls_total":       "Fill-or-kill pricing calls",
	"pricing_errors_total":      "Fill-or-kill pricing calls that failed",
	"errors_total":              "Other errors",
}

var gaugeHelp = map[string]string{
	"apply_latency_avg_ns": "Average incremental apply latency in nanoseconds",
	"e2e_latency_avg_ns":   "Average receive-to-publish latency in nanoseconds",
	"e2e_latency_max_ns":   "Maximum receive-to-publish latency in nanoseconds",
	"active_connections":   "Open exchange connections",
	"resyncing_books":      "Books currently resyncing",
	"subscribed_books":     "Books currently mirrored",
}

// NewCollector wraps Metrics as a prometheus.Collector.
func NewCollector(m *Metrics) prometheus.Collector {
	c := &metricsCollector{m: m, descs: make(map[string]*prometheus.Desc)}
	for name, help := range counterHelp {
		c.descs[name] = prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "book", name), help, nil, nil)
	}
	for name, help := range gaugeHelp {
		c.descs[name] = prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "book", name), help, nil, nil)
	}
	return c
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	counters := map[string]uint64{
		"updates_applied_total":     s.UpdatesApplied,
		"snapshots_applied_total":   s.SnapshotsApplied,
		"updates_dropped_total":     s.UpdatesDropped,
		"updates_buffered_total":    s.UpdatesBuffered,
		"inbox_drops_total":         s.InboxDrops,
		"sequence_gaps_total":       s.SequenceGaps,
		"checksum_mismatches_total": s.ChecksumMismatches,
		"buffer_overflows_total":    s.BufferOverflows,
		"replay_failures_total":     s.ReplayFailures,
		"snapshot_requests_total":   s.SnapshotRequests,
		"resyncs_completed_total":   s.ResyncsCompleted,
		"connection_losses_total":   s.ConnectionLosses,
		"pricing_calls_total":       s.PricingCalls,
		"pricing_errors_total":      s.PricingErrors,
		"errors_total":              s.ErrorsTotal,
	}
	for name, v := range counters {
		ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.CounterValue, float64(v))
	}

	gauges := map[string]float64{
		"apply_latency_avg_ns": float64(s.AvgApplyLatencyNs),
		"e2e_latency_avg_ns":   float64(s.AvgEndToEndNs),
		"e2e_latency_max_ns":   float64(s.MaxEndToEndNs),
		"active_connections":   float64(s.ActiveConnections),
		"resyncing_books":      float64(s.ResyncingBooks),
		"subscribed_books":     float64(s.SubscribedBooks),
	}
	for name, v := range gauges {
		ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.GaugeValue, v)
	}
}

// NewMetricsRegistry registers m plus the Go runtime and process collectors.
func NewMetricsRegistry(m *Metrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// MetricsHandler serves the registry in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
