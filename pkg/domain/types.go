package domain

import "time"

// MessageAuthor identifies who wrote a chat message.
type MessageAuthor string

const (
	AuthorUser      MessageAuthor = "user"
	AuthorAssistant MessageAuthor = "assistant"
)

// DocumentStatus tracks the ingestion lifecycle of an uploaded document.
// Transitions are strictly forward; no state is revisited.
type DocumentStatus string

const (
	StatusSubmitted  DocumentStatus = "submitted"
	StatusExtracting DocumentStatus = "extracting"
	StatusIndexing   DocumentStatus = "indexing"
	StatusSucceeded  DocumentStatus = "succeeded"
	StatusFailed     DocumentStatus = "failed"
)

// Chat is one conversation owned by its creator.
type Chat struct {
	OwnerID       string    `json:"ownerId"`
	ChatID        string    `json:"chatId"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastMessageAt int64     `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
}

// Message is a single immutable chat turn. Ordering key is TimestampMs
// ascending; MessageID carries the timestamp plus a role suffix but is not
// itself an ordering source of truth.
type Message struct {
	ChatID      string        `json:"chatId"`
	MessageID   string        `json:"messageId"`
	OwnerID     string        `json:"ownerId"`
	Author      MessageAuthor `json:"author"`
	Content     string        `json:"content"`
	TimestampMs int64         `json:"timestamp"`
}

// Document is the persisted record of an uploaded knowledge-base document and
// its ingestion state.
type Document struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	StorageKey    string            `json:"storageKey"`
	ContentType   string            `json:"contentType"`
	Status        DocumentStatus    `json:"status"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	UploaderEmail string            `json:"-"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// IngestionJob is one unit of ingestion work as delivered by the queue. It is
// ephemeral: not persisted beyond queue delivery.
type IngestionJob struct {
	Bucket           string `json:"bucket"`
	Key              string `json:"key"`
	ContentType      string `json:"contentType,omitempty"`
	OriginalFilename string `json:"originalFilename"`
	UploaderEmail    string `json:"uploaderEmail,omitempty"`
}

// ParsedUpload is a fully parsed file upload. The HTTP layer produces it from
// the multipart form so everything past the parsing boundary works with typed
// fields instead of raw form lookups.
type ParsedUpload struct {
	Filename      string
	Content       []byte
	ContentType   string
	UploaderEmail string
}
