package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"ragchat/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ChatModel{}, &MessageModel{}, &DocumentModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// PutChat stores or replaces a chat record.
func (s *GormStore) PutChat(chat domain.Chat) error {
	model := chatToModel(chat)
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// GetChat retrieves a chat by owner and ID.
func (s *GormStore) GetChat(ownerID, chatID string) (domain.Chat, bool, error) {
	var model ChatModel
	err := s.db.Where("owner_id = ? AND chat_id = ?", ownerID, chatID).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Chat{}, false, nil
	}
	if err != nil {
		return domain.Chat{}, false, fmt.Errorf("get chat: %w", err)
	}
	return chatFromModel(model), true, nil
}

// ListChats returns the owner's chats ordered by most recent activity first.
func (s *GormStore) ListChats(ownerID string) ([]domain.Chat, error) {
	var models []ChatModel
	err := s.db.Where("owner_id = ?", ownerID).
		Order("last_message_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats := make([]domain.Chat, 0, len(models))
	for _, model := range models {
		chats = append(chats, chatFromModel(model))
	}
	return chats, nil
}

// ConditionalUpdateChat bumps lastMessageAt and increments messageCount,
// defaulting a missing counter to zero.
func (s *GormStore) ConditionalUpdateChat(ownerID, chatID string, lastMessageAt int64) error {
	res := s.db.Model(&ChatModel{}).
		Where("owner_id = ? AND chat_id = ?", ownerID, chatID).
		Updates(map[string]any{
			"last_message_at": lastMessageAt,
			"message_count":   gorm.Expr("COALESCE(message_count, 0) + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update chat %s: %w", chatID, domain.ErrNotFound)
	}
	return nil
}

// PutMessage stores a message record. Messages are immutable once written.
func (s *GormStore) PutMessage(msg domain.Message) error {
	model := MessageModel{
		ChatID:      msg.ChatID,
		MessageID:   msg.MessageID,
		OwnerID:     msg.OwnerID,
		Author:      string(msg.Author),
		Content:     msg.Content,
		TimestampMs: msg.TimestampMs,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// QueryMessages returns all messages for a chat ascending by timestamp.
func (s *GormStore) QueryMessages(chatID string) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.Where("chat_id = ?", chatID).
		Order("timestamp_ms ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, domain.Message{
			ChatID:      model.ChatID,
			MessageID:   model.MessageID,
			OwnerID:     model.OwnerID,
			Author:      domain.MessageAuthor(model.Author),
			Content:     model.Content,
			TimestampMs: model.TimestampMs,
		})
	}
	return msgs, nil
}

// SaveDocument stores or replaces a document record.
func (s *GormStore) SaveDocument(doc domain.Document) error {
	model, err := documentToModel(doc)
	if err != nil {
		return err
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// SetDocumentStatus updates status and optional error message.
func (s *GormStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	res := s.db.Model(&DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("set document status: %w", res.Error)
	}
	return nil
}

// GetDocument retrieves a document record by ID.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	err := s.db.Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("get document: %w", err)
	}
	doc, err := documentFromModel(model)
	if err != nil {
		return domain.Document{}, false, err
	}
	return doc, true, nil
}

// ListDocuments returns all document records, newest first.
func (s *GormStore) ListDocuments() ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]domain.Document, 0, len(models))
	for _, model := range models {
		doc, err := documentFromModel(model)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func chatToModel(chat domain.Chat) ChatModel {
	return ChatModel{
		OwnerID:       chat.OwnerID,
		ChatID:        chat.ChatID,
		Title:         chat.Title,
		CreatedAt:     chat.CreatedAt,
		UpdatedAt:     chat.UpdatedAt,
		LastMessageAt: chat.LastMessageAt,
		MessageCount:  chat.MessageCount,
	}
}

func chatFromModel(model ChatModel) domain.Chat {
	return domain.Chat{
		OwnerID:       model.OwnerID,
		ChatID:        model.ChatID,
		Title:         model.Title,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
		LastMessageAt: model.LastMessageAt,
		MessageCount:  model.MessageCount,
	}
}

func documentToModel(doc domain.Document) (DocumentModel, error) {
	var metadata []byte
	if len(doc.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(doc.Metadata)
		if err != nil {
			return DocumentModel{}, fmt.Errorf("marshal document metadata: %w", err)
		}
	}
	return DocumentModel{
		ID:            doc.ID,
		Title:         doc.Title,
		StorageKey:    doc.StorageKey,
		ContentType:   doc.ContentType,
		Status:        string(doc.Status),
		ErrorMessage:  doc.ErrorMessage,
		UploaderEmail: doc.UploaderEmail,
		Metadata:      metadata,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func documentFromModel(model DocumentModel) (domain.Document, error) {
	var metadata map[string]string
	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return domain.Document{
		ID:            model.ID,
		Title:         model.Title,
		StorageKey:    model.StorageKey,
		ContentType:   model.ContentType,
		Status:        domain.DocumentStatus(model.Status),
		ErrorMessage:  model.ErrorMessage,
		UploaderEmail: model.UploaderEmail,
		Metadata:      metadata,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}
