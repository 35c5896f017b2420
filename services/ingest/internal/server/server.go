package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ragchat/internal/util"
	"ragchat/pkg/queue"
	"ragchat/pkg/search"
	"ragchat/services/ingest/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App   *app.App
	Index search.Index
	Jobs  *queue.RedisJobQueue
}

// Server exposes HTTP endpoints for the ingestion service. The search
// endpoints are internal: this service is the sole writer of the index, so
// other services query it over HTTP instead of opening the index themselves.
type Server struct {
	app   *app.App
	index search.Index
	jobs  *queue.RedisJobQueue
	mux   *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("server: index is required")
	}
	s := &Server{
		app:   cfg.App,
		index: cfg.Index,
		jobs:  cfg.Jobs,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithRequestLog("ingest", handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ingest/jobs/", s.handleJobByID)
	s.mux.HandleFunc("/documents", s.handleDocuments)
	s.mux.HandleFunc("/documents/", s.handleDocumentByID)
	s.mux.HandleFunc("/search/query", s.handleSearchQuery)
	s.mux.HandleFunc("/search/documents", s.handleSearchUpsert)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/ingest/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	status, ok, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	docs, err := s.app.ListDocuments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/documents/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	doc, ok, err := s.app.GetDocument(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type searchRequest struct {
	Text string `json:"text"`
	TopK int    `json:"topK"`
}

type searchResponse struct {
	Results []search.Result `json:"results"`
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}
	results, err := s.index.Query(r.Context(), req.Text, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) handleSearchUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var doc search.Document
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<20)).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if doc.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.index.Upsert(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, "upsert failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
