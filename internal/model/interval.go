package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// operating_intervals — часы работы ресторана на день недели.
// CloseTime <= OpenTime означает интервал через полночь.
type OperatingInterval struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	RestaurantID uuid.UUID `gorm:"type:char(36);not null;index:idx_interval_restaurant_weekday,priority:1"`
	// 0 = воскресенье, как в time.Weekday.
	Weekday time.Weekday `gorm:"not null;index:idx_interval_restaurant_weekday,priority:2"`

	OpenTime  string `gorm:"type:varchar(5);not null"` // "HH:MM"
	CloseTime string `gorm:"type:varchar(5);not null"` // "HH:MM"

	IsActive bool `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *OperatingInterval) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
