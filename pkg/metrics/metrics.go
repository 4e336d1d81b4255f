// Package metrics tracks pipeline stages with Prometheus collectors.
//
// Each Collector registers its metrics on its own registry so that several
// runs, or tests, never collide on the process-wide default registry:
//
//	c := metrics.NewCollector()
//	timer := metrics.NewTimer()
//	c.RecordStage("relational_to_columnar", 48, 48, timer.Stop(), nil)
//	c.RecordRun(timer.Stop(), nil)
//
// Metric names:
//
//	movieport_stage_records_total{stage,direction}   records read (in) and written (out)
//	movieport_stage_duration_seconds{stage}          stage wall time
//	movieport_stage_failures_total{stage}            failed stages
//	movieport_runs_total{status}                     completed runs by outcome
//	movieport_run_duration_seconds{status}           run wall time by outcome
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	merrors "github.com/ajitpratap0/movieport/pkg/errors"
)

const namespace = "movieport"

// Collector holds the stage metrics of one process
type Collector struct {
	registry      *prometheus.Registry
	stageRecords  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

// NewCollector creates a collector on a fresh registry, including the Go runtime collectors
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		stageRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_records_total",
				Help:      "Records read and written per pipeline stage",
			},
			[]string{"stage", "direction"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets: []float64{
					0.01, // local file codecs
					0.05,
					0.1,
					0.5, // bucket and relational round trips
					1,
					5, // table commits
					30,
				},
			},
			[]string{"stage"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Failed pipeline stages",
			},
			[]string{"stage"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"status"},
		),
	}
}

// RecordStage records the counts and duration of a finished stage
func (c *Collector) RecordStage(stage string, in, out int, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.stageRecords.WithLabelValues(stage, "in").Add(float64(in))
	c.stageRecords.WithLabelValues(stage, "out").Add(float64(out))
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		c.stageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRun counts a completed run and observes its duration
func (c *Collector) RecordRun(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(status(err)).Inc()
	c.runDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// Registry exposes the collector's registry for gathering
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes Handler at /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string, l *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return merrors.Wrap(err, merrors.ErrorTypeConfig, "failed to listen for metrics").WithDetail("addr", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	l.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return merrors.Wrap(err, merrors.ErrorTypeConfig, "metrics server failed").WithDetail("addr", addr)
	}
	return nil
}

// Timer measures an operation from creation
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since creation. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
