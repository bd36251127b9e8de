package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder backed by a Prometheus registry.
type PrometheusRecorder struct {
	registry      *prom.Registry
	builds        *prom.CounterVec
	buildDuration prom.Histogram
	stageDuration *prom.HistogramVec
	lastSuccess   prom.Gauge
}

// NewPrometheusRecorder constructs and registers the build metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prom.NewRegistry()
	pr := &PrometheusRecorder{
		registry: reg,
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ttlkernel",
			Name:      "builds_total",
			Help:      "Build outcomes by final status",
		}, []string{"status"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "ttlkernel",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.ExponentialBuckets(10, 2, 10),
		}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ttlkernel",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: "ttlkernel",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful build",
		}),
	}
	reg.MustRegister(pr.builds, pr.buildDuration, pr.stageDuration, pr.lastSuccess)
	return pr
}

func (pr *PrometheusRecorder) RecordBuild(status string, d time.Duration) {
	pr.builds.WithLabelValues(status).Inc()
	pr.buildDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) RecordStage(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) SetLastSuccess(t time.Time) {
	pr.lastSuccess.Set(float64(t.Unix()))
}

// Handler serves the recorder's registry over HTTP.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (pr *PrometheusRecorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pr.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics listener started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
