package api

import (
	"net/http"
	"strconv"
	"strings"
)

const corsPathPrefix = "/api/"

// CORSPolicy is fixed at startup and applied to every /api/* response.
type CORSPolicy struct {
	AllowedOrigin  string
	AllowedMethods string
	AllowedHeaders string
	MaxAgeSeconds  int
}

func (p CORSPolicy) withDefaults() CORSPolicy {
	if p.AllowedMethods == "" {
		p.AllowedMethods = "POST, OPTIONS"
	}
	if p.AllowedHeaders == "" {
		p.AllowedHeaders = "Content-Type, Authorization"
	}
	if p.MaxAgeSeconds == 0 {
		p.MaxAgeSeconds = 86400
	}
	return p
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, corsPathPrefix) {
			h := w.Header()
			if s.cors.AllowedOrigin != "" {
				h.Set("Access-Control-Allow-Origin", s.cors.AllowedOrigin)
			}
			h.Set("Access-Control-Allow-Methods", s.cors.AllowedMethods)
			h.Set("Access-Control-Allow-Headers", s.cors.AllowedHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(s.cors.MaxAgeSeconds))
		}
		next.ServeHTTP(w, r)
	})
}
