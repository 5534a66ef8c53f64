package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelgate.ai/internal/sim/gateway"
)

const namespace = "voxelgate"

// Source is anything that publishes a session metrics snapshot.
type Source interface {
	Metrics() gateway.SessionMetrics
}

// Exporter owns a private registry with the gateway collectors. It
// implements gateway.Sink to count events by kind.
type Exporter struct {
	reg *prometheus.Registry

	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func New() *Exporter {
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Gateway events by kind and dimension.",
		}, []string{"kind", "dimension"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teleport_failures_total",
			Help:      "Teleports refused after the destination search, by reason.",
		}, []string{"reason"}),
	}
	e.reg.MustRegister(
		e.events,
		e.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// RegisterSession exports the snapshot of src as session gauges.
func (e *Exporter) RegisterSession(src Source) {
	gauge := func(name, help string, fn func(m gateway.SessionMetrics) float64) {
		e.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(src.Metrics()) }))
	}
	gauge("tick", "Current tick.", func(m gateway.SessionMetrics) float64 { return float64(m.Tick) })
	gauge("portals", "Registered portals.", func(m gateway.SessionMetrics) float64 { return float64(m.Portals) })
	gauge("addresses", "Distinct portal addresses.", func(m gateway.SessionMetrics) float64 { return float64(m.Addresses) })
	gauge("entities", "Entities in all dimensions.", func(m gateway.SessionMetrics) float64 { return float64(m.Entities) })
	gauge("cooldowns", "Entities on teleport cooldown.", func(m gateway.SessionMetrics) float64 { return float64(m.Cooldowns) })
	gauge("teleport_queue", "Pending delayed teleports.", func(m gateway.SessionMetrics) float64 { return float64(m.Queue) })
	gauge("stored_power", "Power stored across all portals.", func(m gateway.SessionMetrics) float64 { return float64(m.StoredPower) })
	gauge("step_ms", "Duration of the last tick in milliseconds.", func(m gateway.SessionMetrics) float64 { return m.StepMS })
}

// Gauge registers a callback-backed gauge, e.g. queue depths of
// supporting components.
func (e *Exporter) Gauge(name, help string, fn func() float64) {
	e.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Counter registers a callback-backed counter for monotonically growing
// totals kept elsewhere.
func (e *Exporter) Counter(name, help string, fn func() float64) {
	e.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (e *Exporter) Emit(ev gateway.Event) {
	e.events.WithLabelValues(string(ev.Kind), ev.Dimension).Inc()
	if ev.Kind != gateway.KindTeleport {
		return
	}
	if ok, _ := ev.Detail["ok"].(bool); ok {
		return
	}
	if reason, _ := ev.Detail["reason"].(string); reason != "" {
		e.failures.WithLabelValues(reason).Inc()
	}
}

func (e *Exporter) Registry() *prometheus.Registry { return e.reg }

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}
