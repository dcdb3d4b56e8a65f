package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Значения по умолчанию для незаданных полей настроек бронирования.
const (
	DefaultMaxPartySize           = 20
	DefaultMinAdvanceBookingHours = 1
	DefaultMaxAdvanceBookingDays  = 30
	DefaultDurationMinutes        = 90
)

var ErrSettingsMissing = errors.New("reservation settings are not configured")

// ReservationSettings — настройки бронирования ресторана в том виде, в каком они
// лежат в JSON-колонке. Любое поле может отсутствовать.
type ReservationSettings struct {
	MaxPartySize           *int  `json:"maxPartySize,omitempty"`
	MinAdvanceBookingHours *int  `json:"minAdvanceBookingHours,omitempty"`
	MaxAdvanceBookingDays  *int  `json:"maxAdvanceBookingDays,omitempty"`
	AutoConfirm            *bool `json:"autoConfirm,omitempty"`
	DefaultDurationMinutes *int  `json:"defaultDurationMinutes,omitempty"`
}

// BookingPolicy — проверенные настройки с подставленными дефолтами.
type BookingPolicy struct {
	MaxPartySize           int
	MinAdvanceBookingHours int
	MaxAdvanceBookingDays  int
	AutoConfirm            bool
	DefaultDuration        time.Duration
}

func (p BookingPolicy) MinNotice() time.Duration {
	return time.Duration(p.MinAdvanceBookingHours) * time.Hour
}

func (p BookingPolicy) MaxAdvance() time.Duration {
	return time.Duration(p.MaxAdvanceBookingDays) * 24 * time.Hour
}

// Policy разворачивает сырые настройки и проверяет их.
func (s ReservationSettings) Policy() (BookingPolicy, error) {
	p := BookingPolicy{
		MaxPartySize:           intOr(s.MaxPartySize, DefaultMaxPartySize),
		MinAdvanceBookingHours: intOr(s.MinAdvanceBookingHours, DefaultMinAdvanceBookingHours),
		MaxAdvanceBookingDays:  intOr(s.MaxAdvanceBookingDays, DefaultMaxAdvanceBookingDays),
		DefaultDuration:        time.Duration(intOr(s.DefaultDurationMinutes, DefaultDurationMinutes)) * time.Minute,
	}
	if s.AutoConfirm != nil {
		p.AutoConfirm = *s.AutoConfirm
	}

	switch {
	case p.MaxPartySize < 1:
		return BookingPolicy{}, fmt.Errorf("maxPartySize must be >= 1, got %d", p.MaxPartySize)
	case p.MinAdvanceBookingHours < 0:
		return BookingPolicy{}, fmt.Errorf("minAdvanceBookingHours must be >= 0, got %d", p.MinAdvanceBookingHours)
	case p.MaxAdvanceBookingDays < 0:
		return BookingPolicy{}, fmt.Errorf("maxAdvanceBookingDays must be >= 0, got %d", p.MaxAdvanceBookingDays)
	case p.DefaultDuration <= 0:
		return BookingPolicy{}, fmt.Errorf("defaultDurationMinutes must be positive")
	}
	return p, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// restaurants — справочная запись; сами рестораны ведёт внешний сервис.
type Restaurant struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey"`

	OwnerID uuid.UUID `gorm:"type:char(36);not null;index"`
	Name    string    `gorm:"type:varchar(255);not null"`

	// IANA-зона, в которой считаются дни недели и «сегодня».
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	IsActive            bool `gorm:"not null"`
	AcceptsReservations bool `gorm:"not null"`

	// nil внутри: настройки не заданы, бронирование невозможно.
	Settings datatypes.JSONType[*ReservationSettings] `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Tables    []Table             `gorm:"foreignKey:RestaurantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Intervals []OperatingInterval `gorm:"foreignKey:RestaurantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (r *Restaurant) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Location возвращает таймзону ресторана; пустое значение трактуется как UTC.
func (r *Restaurant) Location() (*time.Location, error) {
	if r.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("restaurant %s: time zone %q: %w", r.ID, r.TimeZone, err)
	}
	return loc, nil
}

// Policy возвращает настройки бронирования или ErrSettingsMissing.
func (r *Restaurant) Policy() (BookingPolicy, error) {
	s := r.Settings.Data()
	if s == nil {
		return BookingPolicy{}, ErrSettingsMissing
	}
	return s.Policy()
}

// NewSettings упаковывает настройки для записи в модель.
func NewSettings(s ReservationSettings) datatypes.JSONType[*ReservationSettings] {
	return datatypes.NewJSONType(&s)
}
