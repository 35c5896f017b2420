package server

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"ragchat/internal/ratelimit"
	"ragchat/internal/util"
)

// Config wires required dependencies for the edge server.
type Config struct {
	ChatServiceURL   string
	IngestServiceURL string
	Limiter          *ratelimit.FixedWindowLimiter
	TrustedProxies   *util.TrustedProxies
}

// Server is the public edge of the system: it dispatches requests to the chat
// and ingest services and applies per-client rate limiting. The internal
// search write endpoint is not exposed here; only this gateway's routes reach
// the outside.
type Server struct {
	chatProxy      *httputil.ReverseProxy
	ingestProxy    *httputil.ReverseProxy
	limiter        *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	chatURL, err := parseServiceURL(cfg.ChatServiceURL)
	if err != nil {
		return nil, errors.New("server: valid chat service URL is required")
	}
	ingestURL, err := parseServiceURL(cfg.IngestServiceURL)
	if err != nil {
		return nil, errors.New("server: valid ingest service URL is required")
	}
	s := &Server{
		chatProxy:      httputil.NewSingleHostReverseProxy(chatURL),
		ingestProxy:    httputil.NewSingleHostReverseProxy(ingestURL),
		limiter:        cfg.Limiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func parseServiceURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("URL must be absolute")
	}
	return parsed, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = s.withRateLimit(handler)
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithCORS(handler)
	handler = util.WithRequestLog("gateway", handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/chats", s.chatProxy)
	s.mux.Handle("/chats/", s.chatProxy)
	s.mux.Handle("/knowledge", s.chatProxy)
	s.mux.Handle("/documents", s.ingestProxy)
	s.mux.Handle("/documents/", s.ingestProxy)
	s.mux.Handle("/ingest/jobs/", s.ingestProxy)
	s.mux.HandleFunc("/search/query", s.handleSearchQuery)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleSearchQuery forwards read-only queries. The companion write endpoint
// stays internal to the ingest service.
func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	s.ingestProxy.ServeHTTP(w, r)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			clientIP := util.ClientIP(r, s.trustedProxies)
			if !s.limiter.Allow(clientIP) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
