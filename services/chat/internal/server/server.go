package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ragchat/internal/util"
	"ragchat/pkg/domain"
	"ragchat/services/chat/internal/app"
)

// Uploads larger than this are rejected at the parsing boundary.
const maxUploadBytes = 32 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes HTTP endpoints for the chat service.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{app: cfg.App, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithCORS(handler)
	handler = util.WithRequestLog("chat", handler)
	handler = util.WithRequestID(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/chats", s.handleChats)
	s.mux.HandleFunc("/chats/", s.handleChatSubtree)
	s.mux.HandleFunc("/knowledge", s.handleKnowledge)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerID extracts the caller identity set by the edge proxy. Token
// verification happens upstream; this service trusts the forwarded header.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}
	switch r.Method {
	case http.MethodGet:
		chats, err := s.app.ListChats(owner)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if chats == nil {
			chats = []domain.Chat{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
	case http.MethodPost:
		var req createChatRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chat, err := s.app.CreateChat(owner, strings.TrimSpace(req.Title))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, chat)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatSubtree(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/chats/")
	chatID, sub, _ := strings.Cut(rest, "/")
	if chatID == "" {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		chat, err := s.app.GetChat(owner, chatID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chat)
	case "messages":
		s.handleMessages(w, r, owner, chatID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, owner, chatID string) {
	switch r.Method {
	case http.MethodGet:
		messages, err := s.app.GetMessages(owner, chatID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if messages == nil {
			messages = []domain.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		reply, err := s.app.SendMessage(r.Context(), owner, chatID, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, reply)
	default:
		methodNotAllowed(w)
	}
}

// handleKnowledge parses the multipart upload into a typed value at the HTTP
// boundary; everything past here works with domain.ParsedUpload.
func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	upload := domain.ParsedUpload{
		Filename:      header.Filename,
		Content:       content,
		ContentType:   header.Header.Get("Content-Type"),
		UploaderEmail: strings.TrimSpace(r.FormValue("email")),
	}
	status, err := s.app.AddKnowledge(r.Context(), upload)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

type createChatRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
