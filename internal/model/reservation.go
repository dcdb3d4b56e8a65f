package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusSeated    ReservationStatus = "seated"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// HoldingStatuses — статусы, в которых бронь занимает стол.
var HoldingStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusSeated,
}

func (s ReservationStatus) Holds() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusNoShow:
		return true
	}
	return false
}

// reservations
type Reservation struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	RestaurantID uuid.UUID  `gorm:"type:char(36);not null;index:idx_reservation_restaurant_at,priority:1;uniqueIndex:idx_reservation_restaurant_code,priority:1"`
	TableID      *uuid.UUID `gorm:"type:char(36);index"` // nil: «без предпочтений»
	CustomerID   *uuid.UUID `gorm:"type:char(36);index"` // nil: анонимная бронь

	CustomerName  string `gorm:"type:varchar(255);not null"`
	CustomerEmail string `gorm:"type:varchar(255)"`
	CustomerPhone string `gorm:"type:varchar(32)"`

	// Момент начала, неизменяем после создания. Храним в UTC.
	ReservedAt time.Time `gorm:"not null;index:idx_reservation_restaurant_at,priority:2"`
	// ReservedAt + длительность, нужен для переносимых запросов на пересечение.
	EndsAt time.Time `gorm:"not null"`

	PartySize       int `gorm:"not null"`
	DurationMinutes int `gorm:"not null;default:90"`

	Status           ReservationStatus `gorm:"type:varchar(32);not null;index"`
	ConfirmationCode string            `gorm:"type:varchar(6);not null;uniqueIndex:idx_reservation_restaurant_code,priority:2"`
	SpecialRequests  string            `gorm:"type:text"`

	ConfirmedAt        *time.Time
	SeatedAt           *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Table *Table `gorm:"foreignKey:TableID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Reservation) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}
