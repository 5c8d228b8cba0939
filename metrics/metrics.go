// Package metrics exposes node health as Prometheus collectors. All methods
// are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vipnode/nodehealth/node"
)

// Metrics holds the collectors for every network on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	NodeStatus      *prometheus.GaugeVec
	NodeHeight      *prometheus.GaugeVec
	NodePing        *prometheus.GaugeVec
	AllowedNodes    *prometheus.GaugeVec
	Refreshes       *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	ProbesInFlight  *prometheus.GaugeVec
	ProbeFailures   *prometheus.CounterVec
	Demotions       *prometheus.CounterVec
	Failovers       *prometheus.CounterVec
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		NodeStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodehealth_node_status",
			Help: "Current status of each node, 1 for the active status label",
		}, []string{"network", "node", "status"}),
		NodeHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodehealth_node_height",
			Help: "Last probed block height of each node",
		}, []string{"network", "node"}),
		NodePing: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodehealth_node_ping_seconds",
			Help: "Last probed latency of each node",
		}, []string{"network", "node"}),
		AllowedNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodehealth_allowed_nodes",
			Help: "Number of nodes currently eligible for requests",
		}, []string{"network"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodehealth_refreshes_total",
			Help: "Total number of completed probe cycles",
		}, []string{"network"}),
		RefreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodehealth_refresh_duration_seconds",
			Help:    "Duration of probe cycles",
			Buckets: prometheus.DefBuckets,
		}, []string{"network"}),
		ProbesInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodehealth_probes_in_flight",
			Help: "Number of probes currently running",
		}, []string{"network"}),
		ProbeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodehealth_probe_failures_total",
			Help: "Total number of failed probes by kind",
		}, []string{"network", "kind"}),
		Demotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodehealth_demotions_total",
			Help: "Total number of nodes demoted after a failed request",
		}, []string{"network"}),
		Failovers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodehealth_failovers_total",
			Help: "Total number of requests retried on another node or origin",
		}, []string{"network", "reason"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveNodes replaces the per-node gauges of a network with the snapshot.
func (m *Metrics) ObserveNodes(network string, nodes []node.Node) {
	if m == nil {
		return
	}
	match := prometheus.Labels{"network": network}
	m.NodeStatus.DeletePartialMatch(match)
	m.NodeHeight.DeletePartialMatch(match)
	m.NodePing.DeletePartialMatch(match)

	allowed := 0
	for _, n := range nodes {
		name := n.Main.String()
		m.NodeStatus.WithLabelValues(network, name, n.Status.String()).Set(1)
		if n.Height != nil {
			m.NodeHeight.WithLabelValues(network, name).Set(float64(*n.Height))
		}
		if n.Ping != nil {
			m.NodePing.WithLabelValues(network, name).Set(n.Ping.Seconds())
		}
		if n.Status == node.Allowed && n.IsEnabled {
			allowed++
		}
	}
	m.AllowedNodes.WithLabelValues(network).Set(float64(allowed))
}

// ObserveRefresh records a completed probe cycle.
func (m *Metrics) ObserveRefresh(network string, d time.Duration) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(network).Inc()
	m.RefreshDuration.WithLabelValues(network).Observe(d.Seconds())
}

// ProbeStarted and ProbeDone track probes in flight.
func (m *Metrics) ProbeStarted(network string) {
	if m == nil {
		return
	}
	m.ProbesInFlight.WithLabelValues(network).Inc()
}

func (m *Metrics) ProbeDone(network string, kind string) {
	if m == nil {
		return
	}
	m.ProbesInFlight.WithLabelValues(network).Dec()
	if kind != "" {
		m.ProbeFailures.WithLabelValues(network, kind).Inc()
	}
}

// Demoted records a fast-demote after a failed request.
func (m *Metrics) Demoted(network string) {
	if m == nil {
		return
	}
	m.Demotions.WithLabelValues(network).Inc()
}

// FailedOver records a request retried elsewhere, with reason "node" or
// "origin".
func (m *Metrics) FailedOver(network string, reason string) {
	if m == nil {
		return
	}
	m.Failovers.WithLabelValues(network, reason).Inc()
}
