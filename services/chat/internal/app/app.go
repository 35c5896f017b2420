package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragchat/pkg/ai"
	"ragchat/pkg/domain"
	"ragchat/pkg/queue"
	"ragchat/pkg/search"
	"ragchat/pkg/storage"
	"ragchat/pkg/store"
)

const defaultChatTitle = "New Chat"

// Offset applied to the user-message timestamp for the assistant reply, so a
// turn's two messages always order user-then-assistant.
const assistantOffsetMs = 1000

// JobEnqueuer submits ingestion jobs for uploaded knowledge documents.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job domain.IngestionJob) (queue.JobStatus, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Generator   ai.ChatGenerator
	Index       search.Index
	Objects     storage.ObjectStore
	Bucket      string
	Jobs        JobEnqueuer
	TopK        int
}

// App is the core application service wiring together storage, retrieval, and
// generation for conversations, plus the upload side of the knowledge base.
type App struct {
	store     store.Store
	generator ai.ChatGenerator
	index     search.Index
	objects   storage.ObjectStore
	bucket    string
	jobs      JobEnqueuer
	topK      int
}

// New constructs the application with database-backed storage for chats.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("chat generator required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &App{
		store:     dataStore,
		generator: cfg.Generator,
		index:     cfg.Index,
		objects:   cfg.Objects,
		bucket:    cfg.Bucket,
		jobs:      cfg.Jobs,
		topK:      topK,
	}, nil
}

// CreateChat persists a new empty chat. Titles are unique per owner, compared
// exactly: no case folding or whitespace normalization. The check is a prior
// read, not an atomic constraint, so a race between two creates can slip
// through.
func (a *App) CreateChat(ownerID, title string) (domain.Chat, error) {
	if ownerID == "" {
		return domain.Chat{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if title == "" {
		title = defaultChatTitle
	}
	existing, err := a.store.ListChats(ownerID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("list chats: %w", err)
	}
	for _, chat := range existing {
		if chat.Title == title {
			return domain.Chat{}, fmt.Errorf("%w: chat with this title already exists", domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	chat := domain.Chat{
		OwnerID:      ownerID,
		ChatID:       uuid.NewString(),
		Title:        title,
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: 0,
	}
	if err := a.store.PutChat(chat); err != nil {
		return domain.Chat{}, fmt.Errorf("put chat: %w", err)
	}
	return chat, nil
}

// ListChats returns the owner's chats, most recent activity first.
func (a *App) ListChats(ownerID string) ([]domain.Chat, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	return a.store.ListChats(ownerID)
}

// GetChat returns one chat; absent and not-owned are indistinguishable.
func (a *App) GetChat(ownerID, chatID string) (domain.Chat, error) {
	if ownerID == "" {
		return domain.Chat{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	chat, ok, err := a.store.GetChat(ownerID, chatID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	if !ok {
		return domain.Chat{}, fmt.Errorf("%w: chat not found", domain.ErrNotFound)
	}
	return chat, nil
}

// GetMessages returns a chat's messages in chronological order.
func (a *App) GetMessages(ownerID, chatID string) ([]domain.Message, error) {
	if _, err := a.GetChat(ownerID, chatID); err != nil {
		return nil, err
	}
	return a.store.QueryMessages(chatID)
}

// SendMessage runs one conversation turn: persist the user message, retrieve
// context, assemble the prompt from the full chat history, generate, and
// persist the assistant reply. The user message and its counter update commit
// before generation is attempted; a failure after that point leaves the user
// message durably recorded with no assistant reply and no rollback.
func (a *App) SendMessage(ctx context.Context, ownerID, chatID, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, fmt.Errorf("%w: message content is required", domain.ErrValidation)
	}
	if _, err := a.GetChat(ownerID, chatID); err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC().UnixMilli()
	userMessage := domain.Message{
		ChatID:      chatID,
		MessageID:   fmt.Sprintf("msg_%d_user", now),
		OwnerID:     ownerID,
		Author:      domain.AuthorUser,
		Content:     content,
		TimestampMs: now,
	}
	if err := a.store.PutMessage(userMessage); err != nil {
		return domain.Message{}, fmt.Errorf("put user message: %w", err)
	}
	if err := a.store.ConditionalUpdateChat(ownerID, chatID, now); err != nil {
		return domain.Message{}, fmt.Errorf("update chat counters: %w", err)
	}

	blocks := a.retrieveContext(ctx, content)

	history, err := a.store.QueryMessages(chatID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load history: %w", err)
	}
	turns, preamble := assemblePrompt(history, blocks)

	reply, err := a.generator.GenerateChat(ctx, preamble, turns)
	if err != nil {
		return domain.Message{}, fmt.Errorf("generate reply: %w", err)
	}

	assistantTs := now + assistantOffsetMs
	assistantMessage := domain.Message{
		ChatID:      chatID,
		MessageID:   fmt.Sprintf("msg_%d_assistant", assistantTs),
		OwnerID:     ownerID,
		Author:      domain.AuthorAssistant,
		Content:     reply,
		TimestampMs: assistantTs,
	}
	if err := a.store.PutMessage(assistantMessage); err != nil {
		return domain.Message{}, fmt.Errorf("put assistant message: %w", err)
	}
	if err := a.store.ConditionalUpdateChat(ownerID, chatID, assistantTs); err != nil {
		return domain.Message{}, fmt.Errorf("update chat counters: %w", err)
	}
	return assistantMessage, nil
}

// retrieveContext queries the knowledge-base index for at most topK labeled
// excerpts. Retrieval is best-effort context enrichment: any failure yields no
// blocks rather than failing the turn.
func (a *App) retrieveContext(ctx context.Context, query string) []string {
	if a.index == nil {
		return nil
	}
	results, err := a.index.Query(ctx, query, a.topK)
	if err != nil {
		slog.Error("context retrieval failed", "err", err)
		return nil
	}
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, fmt.Sprintf("Relevant information from document '%s':\n%s", result.Title, result.Excerpt))
	}
	return blocks
}

// AddKnowledge stores an uploaded document and queues it for ingestion.
func (a *App) AddKnowledge(ctx context.Context, upload domain.ParsedUpload) (queue.JobStatus, error) {
	if upload.Filename == "" {
		return queue.JobStatus{}, fmt.Errorf("%w: filename is required", domain.ErrValidation)
	}
	if len(upload.Content) == 0 {
		return queue.JobStatus{}, fmt.Errorf("%w: file content is required", domain.ErrValidation)
	}
	if a.objects == nil || a.jobs == nil {
		return queue.JobStatus{}, fmt.Errorf("knowledge uploads not configured")
	}
	filename := path.Base(upload.Filename)
	key := "documents/" + filename
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.objects.Put(ctx, key, bytes.NewReader(upload.Content), int64(len(upload.Content)), contentType); err != nil {
		return queue.JobStatus{}, fmt.Errorf("store upload: %w", err)
	}
	status, err := a.jobs.Enqueue(ctx, domain.IngestionJob{
		Bucket:           a.bucket,
		Key:              key,
		ContentType:      contentType,
		OriginalFilename: filename,
		UploaderEmail:    strings.TrimSpace(upload.UploaderEmail),
	})
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("enqueue ingestion job: %w", err)
	}
	return status, nil
}
