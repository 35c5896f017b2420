package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragchat/pkg/ai"
	"ragchat/pkg/domain"
	"ragchat/pkg/queue"
	"ragchat/pkg/storage"
	"ragchat/pkg/store"
	"ragchat/services/chat/internal/app"
)

type staticGenerator struct{}

func (staticGenerator) GenerateChat(ctx context.Context, system string, turns []ai.Turn) (string, error) {
	return "reply", nil
}

type stubEnqueuer struct{}

func (stubEnqueuer) Enqueue(ctx context.Context, job domain.IngestionJob) (queue.JobStatus, error) {
	return queue.JobStatus{ID: "job-1", Status: queue.StatusQueued, Job: job}, nil
}

type memObjectStore struct{}

func (memObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return nil
}

func (memObjectStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (memObjectStore) Delete(ctx context.Context, key string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	appCore, err := app.New(app.Config{
		Store:     store.NewMemoryStore(),
		Generator: staticGenerator{},
		Objects:   memObjectStore{},
		Bucket:    "kb",
		Jobs:      stubEnqueuer{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: appCore})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, owner string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set("X-User-Id", owner)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestChatsRequireIdentity(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/chats", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateChatConflictMapsTo409(t *testing.T) {
	srv := newTestServer(t)
	first := doJSON(t, srv, http.MethodPost, "/chats", "u1", `{"title":"Project X"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, body %s", first.Code, first.Body.String())
	}
	second := doJSON(t, srv, http.MethodPost, "/chats", "u1", `{"title":"Project X"}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", second.Code)
	}
}

func TestGetMissingChatMapsTo404(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/chats/nope", "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	created := doJSON(t, srv, http.MethodPost, "/chats", "u1", `{"title":"turns"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d", created.Code)
	}
	var chat domain.Chat
	if err := json.Unmarshal(created.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}

	sent := doJSON(t, srv, http.MethodPost, "/chats/"+chat.ChatID+"/messages", "u1", `{"content":"Hello"}`)
	if sent.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body %s", sent.Code, sent.Body.String())
	}
	var reply domain.Message
	if err := json.Unmarshal(sent.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Author != domain.AuthorAssistant || reply.Content != "reply" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	listed := doJSON(t, srv, http.MethodGet, "/chats/"+chat.ChatID+"/messages", "u1", "")
	if listed.Code != http.StatusOK {
		t.Fatalf("list status = %d", listed.Code)
	}
	var payload struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(listed.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(payload.Messages))
	}
}

func TestKnowledgeUploadAccepted(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "handbook.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("email", "user@example.com"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/knowledge", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status queue.JobStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Job.Key != "documents/handbook.pdf" {
		t.Fatalf("job key = %q", status.Job.Key)
	}
}

func TestKnowledgeRequiresFile(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("email", "user@example.com"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/knowledge", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
