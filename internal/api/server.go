package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dunamismax/pixelshift/internal/domain"
	"github.com/dunamismax/pixelshift/internal/pipeline"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ResizePath = "/api/resize"

	cacheControlImmutable = "public, max-age=31536000, immutable"
	defaultMaxBodyBytes   = 8 << 20
)

type Server struct {
	logger         zerolog.Logger
	processor      imageProcessor
	maxBodyBytes   int64
	cors           CORSPolicy
	rateLimiter    RateLimiter
	trustedProxies int
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

type imageProcessor interface {
	Process(ctx context.Context, req domain.ImageRequest) (pipeline.Result, error)
}

type Options struct {
	MaxBodyBytes int64
	CORS         CORSPolicy
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter RateLimiter
	// TrustedProxies enables X-Forwarded-For for rate limit keys. Zero keys on
	// the connection peer.
	TrustedProxies int
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

func NewServer(logger zerolog.Logger, processor imageProcessor, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("pixelshift/api")
	}

	s := &Server{
		logger:         logger,
		processor:      processor,
		maxBodyBytes:   opts.MaxBodyBytes,
		cors:           opts.CORS.withDefaults(),
		rateLimiter:    opts.RateLimiter,
		trustedProxies: max(0, opts.TrustedProxies),
		metrics:        newMetrics(),
		tracer:         opts.Tracer,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.withCORS(h)
	h = s.withRecovery(h)
	h = s.metrics.withHTTPMetrics(h)
	h = s.withTracing(h)
	h = s.withRequestLogging(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc(ResizePath, s.handleResize)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed. Use POST."})
		return
	}

	req, err := decodeImageRequest(w, r, s.maxBodyBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.process(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeImage(w, result)
}

func (s *Server) process(ctx context.Context, req domain.ImageRequest) (pipeline.Result, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.Int("image.input_bytes", len(req.Buffer)),
		attribute.Int("image.requested_width", req.Width),
		attribute.Int("image.requested_height", req.Height),
		attribute.String("image.format", req.Format.String()),
		attribute.Int("image.quality", req.Quality),
	))
	defer span.End()

	timer := s.metrics.startTransform(req.Format)
	result, err := s.processor.Process(ctx, req)
	timer.observe(result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process image failed")
		return pipeline.Result{}, err
	}

	span.SetAttributes(
		attribute.Int("image.output_bytes", len(result.Data)),
		attribute.Int("image.width", result.Width),
		attribute.Int("image.height", result.Height),
	)
	span.SetStatus(codes.Ok, "processed")
	return result, nil
}

func writeImage(w http.ResponseWriter, result pipeline.Result) {
	h := w.Header()
	h.Set("Content-Type", result.Format.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(result.Data)))
	h.Set("Cache-Control", cacheControlImmutable)
	h.Set("X-Image-Width", strconv.Itoa(result.Width))
	h.Set("X-Image-Height", strconv.Itoa(result.Height))
	h.Set("X-Image-Format", result.Format.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
