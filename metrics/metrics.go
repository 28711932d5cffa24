// Package metrics records probe outcomes as Prometheus metrics and writes
// them in the text exposition format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/cherrydra/mcpscan/probe"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcpscan"

// Probes implements probe.Recorder on its own registry.
type Probes struct {
	registry *prometheus.Registry

	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tools    *prometheus.CounterVec
}

func New() *Probes {
	p := &Probes{
		registry: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Server probes by transport and outcome.",
		}, []string{"transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of server probes that reached the network.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"transport"}),
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tools_discovered_total",
			Help:      "Tools retrieved from servers.",
		}, []string{"transport"}),
	}
	p.registry.MustRegister(p.total, p.duration, p.tools)
	return p
}

func (p *Probes) ObserveProbe(kind string, status probe.Status, elapsed time.Duration, tools int) {
	p.total.WithLabelValues(kind, string(status)).Inc()
	if status == probe.StatusSkipped {
		return
	}
	p.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	p.tools.WithLabelValues(kind).Add(float64(tools))
}

func (p *Probes) Registry() *prometheus.Registry {
	return p.registry
}

// WriteFile atomically replaces file with the current metric values.
func (p *Probes) WriteFile(file string) error {
	if err := prometheus.WriteToTextfile(file, p.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
