package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dunamismax/pixelshift/internal/id"
	"github.com/rs/zerolog"
)

const HeaderRequestID = "X-Request-ID"

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !id.Valid(requestID) {
			requestID = id.New()
		}
		w.Header().Set(HeaderRequestID, requestID)

		logger := s.logger.With().Str("request_id", requestID).Logger()
		ctx := logger.WithContext(r.Context())

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("route", routeLabel(r.URL.Path)).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			zerolog.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "Failed to process image",
				Message: "internal error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
