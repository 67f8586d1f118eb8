package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/pixelshift/internal/domain"
	"github.com/dunamismax/pixelshift/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	transformTotal    *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	inputBytes        prometheus.Histogram
	outputBytes       *prometheus.HistogramVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sizeBuckets := prometheus.ExponentialBuckets(1024, 4, 8)
	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelshift_api_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelshift_api_request_duration_seconds",
			Help:    "Latency of HTTP requests by route, in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelshift_api_rate_limit_rejections_total",
			Help: "Resize calls refused with 429 by the per-client limiter.",
		}, []string{"route"}),
		transformTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelshift_transform_total",
			Help: "Image transforms by requested output format and outcome.",
		}, []string{"format", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelshift_transform_duration_seconds",
			Help:    "Time spent transforming one image.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		inputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelshift_transform_input_bytes",
			Help:    "Decoded source image size in bytes.",
			Buckets: sizeBuckets,
		}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelshift_transform_output_bytes",
			Help:    "Encoded output image size in bytes.",
			Buckets: sizeBuckets,
		}, []string{"format"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.transformTotal,
		m.transformDuration,
		m.inputBytes,
		m.outputBytes,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type transformTimer struct {
	m      *metrics
	format domain.Format
	start  time.Time
}

func (m *metrics) startTransform(format domain.Format) transformTimer {
	return transformTimer{m: m, format: format, start: time.Now()}
}

func (t transformTimer) observe(result pipeline.Result, err error) {
	format := t.format.String()
	t.m.transformDuration.WithLabelValues(format).Observe(time.Since(t.start).Seconds())
	t.m.transformTotal.WithLabelValues(format, transformOutcome(err)).Inc()
	if err != nil {
		return
	}
	t.m.inputBytes.Observe(float64(result.SourceBytes))
	t.m.outputBytes.WithLabelValues(result.Format.String()).Observe(float64(len(result.Data)))
}

func transformOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return "too_large"
	default:
		return "failed"
	}
}

func routeLabel(path string) string {
	switch path {
	case ResizePath, "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
