package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/model"
)

// Clock — источник текущего времени, подменяется в тестах.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Имена событий, публикуемых после успешных операций.
const (
	EventReservationCreated   = "ReservationCreated"
	EventReservationConfirmed = "ReservationConfirmed"
	EventReservationSeated    = "ReservationSeated"
	EventReservationCompleted = "ReservationCompleted"
	EventReservationCancelled = "ReservationCancelled"
	EventReservationNoShow    = "ReservationNoShow"
	EventReservationUpdated   = "ReservationUpdated"
)

// Event — то, что уходит в уведомления. Ядро не знает, куда именно.
type Event struct {
	Name         string          `json:"event"`
	RestaurantID uuid.UUID       `json:"restaurantId"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Reservation  ReservationView `json:"reservation"`
}

// Publisher доставляет события; ошибки доставки операцию не откатывают.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// ReservationView — внешнее представление брони.
type ReservationView struct {
	ID                 uuid.UUID  `json:"id"`
	RestaurantID       uuid.UUID  `json:"restaurantId"`
	TableID            *uuid.UUID `json:"tableId,omitempty"`
	CustomerID         *uuid.UUID `json:"customerId,omitempty"`
	CustomerName       string     `json:"customerName"`
	CustomerEmail      string     `json:"customerEmail,omitempty"`
	CustomerPhone      string     `json:"customerPhone,omitempty"`
	ReservedAt         time.Time  `json:"reservationInstant"`
	PartySize          int        `json:"partySize"`
	DurationMinutes    int        `json:"estimatedDurationMinutes"`
	Status             string     `json:"status"`
	ConfirmationCode   string     `json:"confirmationCode"`
	SpecialRequests    string     `json:"specialRequests,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	SeatedAt           *time.Time `json:"seatedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
}

func NewReservationView(r *model.Reservation) ReservationView {
	return ReservationView{
		ID:                 r.ID,
		RestaurantID:       r.RestaurantID,
		TableID:            r.TableID,
		CustomerID:         r.CustomerID,
		CustomerName:       r.CustomerName,
		CustomerEmail:      r.CustomerEmail,
		CustomerPhone:      r.CustomerPhone,
		ReservedAt:         r.ReservedAt,
		PartySize:          r.PartySize,
		DurationMinutes:    r.DurationMinutes,
		Status:             string(r.Status),
		ConfirmationCode:   r.ConfirmationCode,
		SpecialRequests:    r.SpecialRequests,
		ConfirmedAt:        r.ConfirmedAt,
		SeatedAt:           r.SeatedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
	}
}

// Код подтверждения: без I, O, 0 и 1, чтобы не путали при диктовке.
const (
	ConfirmationCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ConfirmationCodeLength   = 6

	maxCodeAttempts = 5
)

// GenerateConfirmationCode использует crypto/rand + rand.Int, без смещения по модулю.
func GenerateConfirmationCode() (string, error) {
	var sb strings.Builder
	alphaLen := big.NewInt(int64(len(ConfirmationCodeAlphabet)))
	for i := 0; i < ConfirmationCodeLength; i++ {
		num, err := rand.Int(rand.Reader, alphaLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(ConfirmationCodeAlphabet[num.Int64()])
	}
	return sb.String(), nil
}

// NormalizeConfirmationCode приводит ввод пользователя к хранимому виду
// и проверяет алфавит.
func NormalizeConfirmationCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != ConfirmationCodeLength {
		return "", errors.New("confirmation code must be 6 characters")
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(ConfirmationCodeAlphabet, rune(code[i])) {
			return "", errors.New("confirmation code contains invalid characters")
		}
	}
	return code, nil
}
