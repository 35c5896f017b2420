package store

import (
	"ragchat/pkg/domain"
)

// Store defines persistence operations for chats, messages, and indexed
// document records.
type Store interface {
	// chats
	PutChat(chat domain.Chat) error
	GetChat(ownerID, chatID string) (domain.Chat, bool, error)
	// ListChats returns the owner's chats ordered by most recent activity first.
	ListChats(ownerID string) ([]domain.Chat, error)
	// ConditionalUpdateChat sets lastMessageAt and increments messageCount by
	// one. A missing counter is treated as zero, so the update never fails on
	// an uninitialized count.
	ConditionalUpdateChat(ownerID, chatID string, lastMessageAt int64) error

	// messages
	PutMessage(msg domain.Message) error
	// QueryMessages returns all messages for a chat ascending by timestamp.
	QueryMessages(chatID string) ([]domain.Message, error)

	// documents
	SaveDocument(doc domain.Document) error
	SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocuments() ([]domain.Document, error)
}
