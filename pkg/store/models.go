package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ChatModel struct {
	OwnerID       string    `gorm:"primaryKey"`
	ChatID        string    `gorm:"primaryKey"`
	Title         string    `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	LastMessageAt int64     `gorm:"not null;index"`
	MessageCount  int       `gorm:"not null;default:0"`
}

type MessageModel struct {
	ChatID      string `gorm:"primaryKey"`
	MessageID   string `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Author      string `gorm:"not null"`
	Content     string `gorm:"type:text;not null"`
	TimestampMs int64  `gorm:"not null;index"`
}

type DocumentModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	StorageKey    string `gorm:"not null;index"`
	ContentType   string
	Status        string `gorm:"not null"`
	ErrorMessage  string
	UploaderEmail string
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}
