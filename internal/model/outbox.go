package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// outbox_messages — события, ожидающие отправки в брокер.
type OutboxMessage struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	Type        string         `gorm:"type:varchar(64);not null;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	OccurredAt  time.Time      `gorm:"not null;index"`
	RetryCount  int            `gorm:"not null;default:0"`
	ProcessedAt *time.Time     `gorm:"index"`
}

func (m *OutboxMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
