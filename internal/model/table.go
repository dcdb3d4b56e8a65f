package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// restaurant_tables — физические столы ресторана.
type Table struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	RestaurantID uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_table_restaurant_number,priority:1"`
	// Номер стола уникален в пределах ресторана.
	Number   int  `gorm:"not null;uniqueIndex:idx_table_restaurant_number,priority:2"`
	Capacity int  `gorm:"not null;check:chk_table_capacity,capacity >= 1"`
	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Table) TableName() string {
	return "restaurant_tables"
}

func (t *Table) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
