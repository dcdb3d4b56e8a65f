package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

const (
	// Шаг сетки слотов.
	SlotStep = 30 * time.Minute
	// Запас до и после брони на уборку стола.
	OccupancyBuffer = 15 * time.Minute

	DateLayout = "2006-01-02"

	ReasonTimePassed   = "time has passed"
	ReasonNoTables     = "no tables available"
	ReasonTooFar       = "beyond the advance booking window"
	reasonNoticeFormat = "requires at least %d hours advance notice"
)

// Slot — одна ячейка сетки доступности.
type Slot struct {
	Time            string `json:"time"`
	Available       bool   `json:"available"`
	TablesAvailable int    `json:"tablesAvailable"`
	Reason          string `json:"reason,omitempty"`

	At time.Time `json:"-"`
}

type AvailabilityService struct {
	store     *repository.Store
	schedule  *ScheduleService
	inventory *InventoryService
	clock     Clock
}

func NewAvailabilityService(store *repository.Store, schedule *ScheduleService, inventory *InventoryService, clock Clock) *AvailabilityService {
	return &AvailabilityService{
		store:     store,
		schedule:  schedule,
		inventory: inventory,
		clock:     clock,
	}
}

// bookable — ресторан с разобранными настройками и таймзоной.
type bookable struct {
	restaurant *model.Restaurant
	policy     model.BookingPolicy
	loc        *time.Location
}

// loadBookable загружает ресторан и проверяет, что он принимает брони и что
// компания укладывается в лимит.
func loadBookable(ctx context.Context, repo repository.RestaurantRepository, restaurantID uuid.UUID, partySize int) (*bookable, error) {
	if partySize < 1 {
		return nil, newError(KindInvalidPartySize, "party size must be at least 1", "partySize", fmt.Sprint(partySize))
	}

	rest, err := repo.GetByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindRestaurantNotFound, "restaurant not found", "restaurantId", restaurantID.String())
		}
		return nil, storageFailure("load restaurant", err)
	}

	if !rest.IsActive || !rest.AcceptsReservations {
		return nil, newError(KindNotAcceptingReservations, "restaurant is not accepting reservations", "restaurantId", rest.ID.String())
	}
	policy, err := rest.Policy()
	if err != nil {
		return nil, &Error{Kind: KindNotAcceptingReservations, Message: "restaurant reservation settings are invalid", Err: err}
	}
	loc, err := rest.Location()
	if err != nil {
		return nil, &Error{Kind: KindNotAcceptingReservations, Message: "restaurant time zone is invalid", Err: err}
	}

	if partySize > policy.MaxPartySize {
		return nil, newError(KindPartySizeExceeded,
			fmt.Sprintf("party of %d exceeds the maximum of %d", partySize, policy.MaxPartySize),
			"partySize", fmt.Sprint(partySize),
			"maxPartySize", fmt.Sprint(policy.MaxPartySize),
		)
	}

	return &bookable{restaurant: rest, policy: policy, loc: loc}, nil
}

// GetAvailability строит сетку слотов на дату (YYYY-MM-DD в таймзоне ресторана).
// Недоступные слоты тоже возвращаются, с причиной. Если ресторан в этот день
// закрыт, результат пустой, это не ошибка.
func (s *AvailabilityService) GetAvailability(ctx context.Context, restaurantID uuid.UUID, date string, partySize int) ([]Slot, error) {
	b, err := loadBookable(ctx, s.store.Restaurants, restaurantID, partySize)
	if err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation(DateLayout, date, b.loc)
	if err != nil {
		return nil, newError(KindInvalidFormat, "date must be YYYY-MM-DD", "date", date)
	}

	now := s.clock.Now()
	today := calendar.DayStart(now, b.loc)
	if day.Before(today) {
		return nil, newError(KindPastDateRejected, "date is in the past", "date", date)
	}
	lastDay := calendar.DayStart(now.Add(b.policy.MaxAdvance()), b.loc)
	if day.After(lastDay) {
		return nil, newError(KindTooFarInAdvance,
			fmt.Sprintf("reservations open at most %d days in advance", b.policy.MaxAdvanceBookingDays),
			"date", date,
			"lastBookableDate", lastDay.Format(DateLayout),
		)
	}

	intervals, err := s.schedule.OpenIntervalsFor(ctx, restaurantID, day.Weekday())
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return []Slot{}, nil
	}

	tables, err := s.inventory.TablesWithCapacityAtLeast(ctx, restaurantID, partySize)
	if err != nil {
		return nil, err
	}

	instants, err := slotInstants(day, intervals)
	if err != nil {
		return nil, err
	}

	duration := b.policy.DefaultDuration
	first := calendar.Occupancy(instants[0], duration, OccupancyBuffer)
	last := calendar.Occupancy(instants[len(instants)-1], duration, OccupancyBuffer)

	// Все брони дня читаются один раз, дальше проверки идут в памяти.
	existing, err := s.store.Reservations.ListOverlapping(ctx, repository.OverlapQuery{
		RestaurantID: restaurantID,
		From:         first.Start,
		To:           last.End,
		Statuses:     model.HoldingStatuses,
	}, repository.LockNone)
	if err != nil {
		return nil, storageFailure("list reservations", err)
	}

	minNotice := b.policy.MinNotice()
	latest := now.Add(b.policy.MaxAdvance())
	slots := make([]Slot, 0, len(instants))
	for _, at := range instants {
		slot := Slot{Time: calendar.FormatClock(calendar.ClockOf(at.In(b.loc))), At: at}

		switch {
		case at.Before(now):
			slot.Reason = ReasonTimePassed
		case at.Before(now.Add(minNotice)):
			slot.Reason = fmt.Sprintf(reasonNoticeFormat, b.policy.MinAdvanceBookingHours)
		case at.After(latest):
			slot.Reason = ReasonTooFar
		default:
			window := calendar.Occupancy(at, duration, OccupancyBuffer)
			slot.TablesAvailable = freeTables(tables, overlappingWith(existing, window))
			slot.Available = slot.TablesAvailable > 0
			if !slot.Available {
				slot.Reason = ReasonNoTables
			}
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// slotInstants раскладывает интервалы дня в моменты с шагом SlotStep.
// Ночной интервал продолжается на следующие календарные сутки.
func slotInstants(day time.Time, intervals []model.OperatingInterval) ([]time.Time, error) {
	step := int(SlotStep / time.Minute)

	var out []time.Time
	for _, iv := range intervals {
		open, err := calendar.MinutesSinceMidnight(iv.OpenTime)
		if err != nil {
			return nil, calendarError(err)
		}
		closeMin, err := calendar.MinutesSinceMidnight(iv.CloseTime)
		if err != nil {
			return nil, calendarError(err)
		}
		if closeMin <= open {
			closeMin += calendar.MinutesPerDay
		}
		for m := open; m < closeMin; m += step {
			out = append(out, calendar.AtClock(day, m))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// overlappingWith отбирает брони, чьё время [начало, конец) пересекает окно.
func overlappingWith(existing []model.Reservation, window calendar.TimeRange) []model.Reservation {
	var out []model.Reservation
	for _, r := range existing {
		if (calendar.TimeRange{Start: r.ReservedAt, End: r.EndsAt}).Overlaps(window) {
			out = append(out, r)
		}
	}
	return out
}
