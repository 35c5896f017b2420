package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ragchat/pkg/domain"
)

// MemoryStore keeps chats, messages, and document records in-process. Used by
// tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]domain.Chat      // key: ownerID + "/" + chatID
	messages map[string][]domain.Message // key: chatID, insertion order
	docs     map[string]domain.Document
	docOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]domain.Chat),
		messages: make(map[string][]domain.Message),
		docs:     make(map[string]domain.Document),
	}
}

// PutChat stores or replaces a chat record.
func (m *MemoryStore) PutChat(chat domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chatKey(chat.OwnerID, chat.ChatID)] = chat
	return nil
}

// GetChat retrieves a chat by owner and ID.
func (m *MemoryStore) GetChat(ownerID, chatID string) (domain.Chat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatKey(ownerID, chatID)]
	return chat, ok, nil
}

// ListChats returns the owner's chats ordered by most recent activity first.
func (m *MemoryStore) ListChats(ownerID string) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Chat, 0)
	for _, chat := range m.chats {
		if chat.OwnerID == ownerID {
			res = append(res, chat)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].LastMessageAt > res[j].LastMessageAt
	})
	return res, nil
}

// ConditionalUpdateChat bumps lastMessageAt and increments messageCount,
// defaulting a missing counter to zero.
func (m *MemoryStore) ConditionalUpdateChat(ownerID, chatID string, lastMessageAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chatKey(ownerID, chatID)
	chat, ok := m.chats[key]
	if !ok {
		return fmt.Errorf("update chat %s: %w", chatID, domain.ErrNotFound)
	}
	chat.LastMessageAt = lastMessageAt
	chat.MessageCount++
	chat.UpdatedAt = time.Now().UTC()
	m.chats[key] = chat
	return nil
}

// PutMessage records a message linked to a chat.
func (m *MemoryStore) PutMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}

// QueryMessages returns all messages for a chat ascending by timestamp.
func (m *MemoryStore) QueryMessages(chatID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]domain.Message, len(m.messages[chatID]))
	copy(msgs, m.messages[chatID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].TimestampMs < msgs[j].TimestampMs
	})
	return msgs, nil
}

// SaveDocument stores or replaces a document record.
func (m *MemoryStore) SaveDocument(doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; !exists {
		m.docOrder = append(m.docOrder, doc.ID)
	}
	m.docs[doc.ID] = doc
	return nil
}

// SetDocumentStatus updates status and optional error message.
func (m *MemoryStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil
	}
	doc.Status = status
	doc.ErrorMessage = errMsg
	doc.UpdatedAt = time.Now().UTC()
	m.docs[id] = doc
	return nil
}

// GetDocument retrieves a document record by ID.
func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok, nil
}

// ListDocuments returns document records, newest first.
func (m *MemoryStore) ListDocuments() ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.docOrder))
	for i := len(m.docOrder) - 1; i >= 0; i-- {
		if doc, ok := m.docs[m.docOrder[i]]; ok {
			res = append(res, doc)
		}
	}
	return res, nil
}

func chatKey(ownerID, chatID string) string {
	return ownerID + "/" + chatID
}
