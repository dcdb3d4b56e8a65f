package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

// ScheduleService отвечает на вопросы «открыт ли ресторан в момент X» и
// «какие окна работы в день недели W», а также ведёт сами интервалы.
type ScheduleService struct {
	store *repository.Store
}

func NewScheduleService(store *repository.Store) *ScheduleService {
	return &ScheduleService{store: store}
}

// IntervalInput — данные для создания/изменения интервала работы.
// Overnight=true означает, что интервал заканчивается на следующие сутки (close < open).
type IntervalInput struct {
	Weekday   time.Weekday
	Open      string
	Close     string
	Overnight bool
}

// calendarError переводит ошибки разбора времени в классы ядра.
func calendarError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, calendar.ErrInvalidFormat):
		return &Error{Kind: KindInvalidFormat, Message: err.Error()}
	case errors.Is(err, calendar.ErrInvalidTimeRange):
		return &Error{Kind: KindInvalidTimeRange, Message: err.Error()}
	}
	return err
}

// ValidateOrderedTimes требует open < close в пределах суток.
func ValidateOrderedTimes(open, close string) error {
	return calendarError(calendar.ValidateOrderedTimes(open, close))
}

func (in IntervalInput) validate() error {
	if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
		return newError(KindInvalidRequest, "weekday must be in 0..6", "weekday", fmt.Sprint(int(in.Weekday)))
	}
	if in.Overnight {
		return calendarError(calendar.ValidateOvernightTimes(in.Open, in.Close))
	}
	return ValidateOrderedTimes(in.Open, in.Close)
}

// CheckNoOverlap проверяет, что новый интервал не пересекается с активными
// интервалами того же дня. excludeID пропускается (при редактировании).
func (s *ScheduleService) CheckNoOverlap(
	ctx context.Context,
	restaurantID uuid.UUID,
	weekday time.Weekday,
	open, close string,
	excludeID *uuid.UUID,
) error {
	return checkNoOverlap(ctx, s.store.Intervals, restaurantID, weekday, open, close, excludeID)
}

func checkNoOverlap(
	ctx context.Context,
	repo repository.IntervalRepository,
	restaurantID uuid.UUID,
	weekday time.Weekday,
	open, close string,
	excludeID *uuid.UUID,
) error {
	intervals, err := repo.ListActive(ctx, restaurantID, weekday)
	if err != nil {
		return storageFailure("list intervals", err)
	}

	for _, iv := range intervals {
		if excludeID != nil && iv.ID == *excludeID {
			continue
		}
		overlap, err := calendar.ClockIntervalsOverlap(open, close, iv.OpenTime, iv.CloseTime)
		if err != nil {
			return calendarError(err)
		}
		if overlap {
			return newError(KindOverlapConflict,
				fmt.Sprintf("interval %s-%s overlaps existing interval %s-%s", open, close, iv.OpenTime, iv.CloseTime),
				"conflictingIntervalId", iv.ID.String(),
				"conflictingOpen", iv.OpenTime,
				"conflictingClose", iv.CloseTime,
			)
		}
	}
	return nil
}

// OpenIntervalsFor возвращает активные интервалы дня недели по возрастанию времени открытия.
func (s *ScheduleService) OpenIntervalsFor(ctx context.Context, restaurantID uuid.UUID, weekday time.Weekday) ([]model.OperatingInterval, error) {
	intervals, err := s.store.Intervals.ListActive(ctx, restaurantID, weekday)
	if err != nil {
		return nil, storageFailure("list intervals", err)
	}
	return intervals, nil
}

// IsOpenAt проверяет, попадает ли момент в один из интервалов работы. День недели и время
// суток берутся в таймзоне ресторана. Учитывается и «хвост» ночного интервала
// предыдущего дня (пятница 22:00-02:00 открыта в субботу в 01:00). Время до открытия
// ночного интервала к нему не относится: пятница 01:00 принадлежит ночи четверга.
func (s *ScheduleService) IsOpenAt(ctx context.Context, restaurant *model.Restaurant, instant time.Time) (bool, error) {
	loc, err := restaurant.Location()
	if err != nil {
		return false, newError(KindNotAcceptingReservations, err.Error())
	}
	local := instant.In(loc)

	today, err := s.OpenIntervalsFor(ctx, restaurant.ID, local.Weekday())
	if err != nil {
		return false, err
	}
	for _, iv := range today {
		in, err := calendar.InOpeningDayPart(local, iv.OpenTime, iv.CloseTime)
		if err != nil {
			return false, calendarError(err)
		}
		if in {
			return true, nil
		}
	}

	prev, err := s.OpenIntervalsFor(ctx, restaurant.ID, (local.Weekday()+6)%7)
	if err != nil {
		return false, err
	}
	for _, iv := range prev {
		tail, err := calendar.InOvernightTail(local, iv.OpenTime, iv.CloseTime)
		if err != nil {
			return false, calendarError(err)
		}
		if tail {
			return true, nil
		}
	}
	return false, nil
}

// CreateInterval проверяет и сохраняет интервал. Проверка пересечений и вставка
// идут в одной транзакции.
func (s *ScheduleService) CreateInterval(ctx context.Context, restaurantID uuid.UUID, in IntervalInput) (*model.OperatingInterval, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	iv := &model.OperatingInterval{
		RestaurantID: restaurantID,
		Weekday:      in.Weekday,
		OpenTime:     in.Open,
		CloseTime:    in.Close,
		IsActive:     true,
	}

	err := s.store.InTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *repository.Store) error {
		if _, err := tx.Restaurants.GetByID(ctx, restaurantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(KindRestaurantNotFound, "restaurant not found", "restaurantId", restaurantID.String())
			}
			return storageFailure("load restaurant", err)
		}
		if err := checkNoOverlap(ctx, tx.Intervals, restaurantID, in.Weekday, in.Open, in.Close, nil); err != nil {
			return err
		}
		if err := tx.Intervals.Create(ctx, iv); err != nil {
			return storageFailure("create interval", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// UpdateInterval меняет день и время существующего интервала.
func (s *ScheduleService) UpdateInterval(ctx context.Context, id uuid.UUID, in IntervalInput) (*model.OperatingInterval, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var iv *model.OperatingInterval
	err := s.store.InTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *repository.Store) error {
		cur, err := tx.Intervals.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(KindIntervalNotFound, "interval not found", "intervalId", id.String())
			}
			return storageFailure("load interval", err)
		}
		if cur.IsActive {
			if err := checkNoOverlap(ctx, tx.Intervals, cur.RestaurantID, in.Weekday, in.Open, in.Close, &cur.ID); err != nil {
				return err
			}
		}

		cur.Weekday = in.Weekday
		cur.OpenTime = in.Open
		cur.CloseTime = in.Close
		if err := tx.Intervals.Update(ctx, cur); err != nil {
			return storageFailure("update interval", err)
		}
		iv = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// DeactivateInterval выключает интервал; существующие брони не трогаются.
func (s *ScheduleService) DeactivateInterval(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Intervals.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindIntervalNotFound, "interval not found", "intervalId", id.String())
		}
		return storageFailure("load interval", err)
	}
	if err := s.store.Intervals.Deactivate(ctx, id); err != nil {
		return storageFailure("deactivate interval", err)
	}
	return nil
}
