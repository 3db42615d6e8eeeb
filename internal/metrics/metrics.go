// Package metrics provides Prometheus metrics for the galaxyd daemon.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

const namespace = "galaxyd"

// Metrics contains the daemon's collectors
type Metrics struct {
	registry *prometheus.Registry

	presenceUpdates *prometheus.CounterVec
	connectAttempts *prometheus.CounterVec
	connState       prometheus.Gauge
	filesScanned    *prometheus.CounterVec
	coverRequests   *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates and registers all metrics on registry
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		presenceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_updates_total",
			Help:      "Rich presence updates by result",
		}, []string{"result"}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_connect_attempts_total",
			Help:      "Presence transport connection attempts by result",
		}, []string{"result"}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_connection_state",
			Help:      "Presence transport state (0 disconnected, 1 connecting, 2 connected)",
		}),
		filesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_files_total",
			Help:      "Directory entries seen by the scanner by outcome",
		}, []string{"outcome"}),
		coverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cover_requests_total",
			Help:      "Cover art lookups by cache outcome",
		}, []string{"cache"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled by surface, command and result",
		}, []string{"surface", "command", "result"}),
	}

	collectors := []prometheus.Collector{
		m.presenceUpdates,
		m.connectAttempts,
		m.connState,
		m.filesScanned,
		m.coverRequests,
		m.commands,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// PresenceUpdate records the outcome of one activity update
func (m *Metrics) PresenceUpdate(err error) {
	if m == nil {
		return
	}
	m.presenceUpdates.WithLabelValues(result(err)).Inc()
}

// ConnectAttempt records the outcome of one transport connection attempt
func (m *Metrics) ConnectAttempt(err error) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(result(err)).Inc()
}

// SetConnState records the current transport state
func (m *Metrics) SetConnState(state types.ConnState) {
	if m == nil {
		return
	}
	m.connState.Set(float64(state))
}

// FileScanned records a directory entry outcome ("listed", "skipped")
func (m *Metrics) FileScanned(outcome string) {
	if m == nil {
		return
	}
	m.filesScanned.WithLabelValues(outcome).Inc()
}

// CoverLookup records a cover cache hit or miss
func (m *Metrics) CoverLookup(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.coverRequests.WithLabelValues(label).Inc()
}

// Command records a handled command on a surface ("socket", "http")
func (m *Metrics) Command(surface, command string, success bool) {
	if m == nil {
		return
	}
	res := "ok"
	if !success {
		res = "error"
	}
	m.commands.WithLabelValues(surface, command, res).Inc()
}
