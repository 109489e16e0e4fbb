// Package metrics exposes bridge counters in Prometheus format.
//
// All methods are safe on a nil *Metrics so components can run without a
// registry (tests, tools).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simlink"

type Metrics struct {
	reg *prometheus.Registry

	tickOverruns  *prometheus.CounterVec
	packetsIn     *prometheus.CounterVec
	packetsOut    *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	droppedBytes  prometheus.Counter
	sessions      prometheus.Gauge
	simConnected  prometheus.Gauge
	simReconnects prometheus.Counter
	simCommands   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		tickOverruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_overruns_total",
			Help:      "Periodic task ticks skipped because the previous run was still busy.",
		}, []string{"task"}),
		packetsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_packets_total",
			Help:      "Command packets decoded from the remote panel.",
		}, []string{"transport"}),
		packetsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_packets_total",
			Help:      "Telemetry packets sent.",
		}, []string{"transport"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Packets that failed to decode.",
		}, []string{"transport"}),
		droppedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "dropped_bytes_total",
			Help:      "Serial bytes discarded while searching for a frame header.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "sessions",
			Help:      "Live TCP sessions.",
		}),
		simConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "connected",
			Help:      "1 while the simulator source is connected.",
		}),
		simReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "reconnects_total",
			Help:      "Simulator connection attempts after the first.",
		}),
		simCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "commands_total",
			Help:      "Control commands forwarded to the simulator.",
		}),
	}
	m.reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.tickOverruns,
		m.packetsIn,
		m.packetsOut,
		m.decodeErrors,
		m.droppedBytes,
		m.sessions,
		m.simConnected,
		m.simReconnects,
		m.simCommands,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for callers that gather directly.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) TickOverruns(task string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tickOverruns.WithLabelValues(task).Add(float64(n))
}

func (m *Metrics) PacketIn(transport string) {
	if m == nil {
		return
	}
	m.packetsIn.WithLabelValues(transport).Inc()
}

func (m *Metrics) PacketOut(transport string) {
	if m == nil {
		return
	}
	m.packetsOut.WithLabelValues(transport).Inc()
}

func (m *Metrics) DecodeError(transport string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(transport).Inc()
}

func (m *Metrics) DroppedBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedBytes.Add(float64(n))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) SetSimConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.simConnected.Set(v)
}

func (m *Metrics) SimReconnect() {
	if m == nil {
		return
	}
	m.simReconnects.Inc()
}

func (m *Metrics) SimCommands(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.simCommands.Add(float64(n))
}
