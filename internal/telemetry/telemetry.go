// Package telemetry wires the supervisor's lifecycle transitions into
// both a Prometheus registry (generalizing the teacher's restart/crash
// counters and uptime gauge) and an OpenTelemetry Meter bridged onto the
// same registry via the Prometheus exporter, recording transition
// duration histograms (SPEC_FULL.md §11).
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry bundles the metrics the supervisor core reports.
type Telemetry struct {
	TransitionTotal *prometheus.CounterVec
	RestartTotal    *prometheus.CounterVec
	CrashTotal      prometheus.Counter
	StartupTries    prometheus.Gauge
	ActiveFaults    prometheus.Gauge

	meterProvider     *sdkmetric.MeterProvider
	transitionLatency otelmetric.Float64Histogram
}

// New registers the supervisor's metrics against a fresh Prometheus
// registry and bridges an OTel MeterProvider onto it, generalizing the
// teacher's bare prometheus.MustRegister calls.
func New() (*Telemetry, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	t := &Telemetry{
		TransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_supervisor_transition_total",
			Help: "Total number of lifecycle state transitions, by target state.",
		}, []string{"state"}),
		RestartTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_supervisor_restart_total",
			Help: "Total number of times the supervisor restarted the daemon, by reason.",
		}, []string{"reason"}),
		CrashTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_supervisor_daemon_crash_total",
			Help: "Total number of times the daemon has crashed.",
		}),
		StartupTries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_supervisor_startup_tries",
			Help: "Current consecutive startup attempt count.",
		}),
		ActiveFaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_supervisor_active_faults",
			Help: "Number of currently active fault injections confirmed by the daemon.",
		}),
	}
	if err := reg.Register(t.TransitionTotal); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(t.RestartTotal); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(t.CrashTotal); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(t.StartupTries); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(t.ActiveFaults); err != nil {
		return nil, nil, err
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := mp.Meter("github.com/cardano-foundation/node-supervisor")
	hist, err := meter.Float64Histogram(
		"node_supervisor_transition_duration_seconds",
		otelmetric.WithDescription("Wall-clock duration of lifecycle operations (start/stop/kill/restart)."),
	)
	if err != nil {
		return nil, nil, err
	}
	t.meterProvider = mp
	t.transitionLatency = hist

	return t, reg, nil
}

// ObserveDuration records how long a named lifecycle operation took.
func (t *Telemetry) ObserveDuration(ctx context.Context, operation string, d time.Duration) {
	if t.transitionLatency == nil {
		return
	}
	t.transitionLatency.Record(ctx, d.Seconds(), otelmetric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// Shutdown flushes and stops the OTel MeterProvider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.meterProvider == nil {
		return nil
	}
	return t.meterProvider.Shutdown(ctx)
}
