package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// customers
type Customer struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	Email string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name  string `gorm:"type:varchar(255)"`
	Phone string `gorm:"type:varchar(32)"`

	// Для гостевых записей хранится bcrypt-хеш случайного секрета, войти по нему нельзя.
	PasswordHash string `gorm:"type:varchar(255);not null"`
	IsGuest      bool   `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
