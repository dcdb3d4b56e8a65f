package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

// transition описывает один переход конечного автомата брони.
type transition struct {
	name  string
	to    model.ReservationStatus
	from  []model.ReservationStatus
	event string
	// колонка с отметкой времени перехода, пусто, если отметки нет
	stampColumn string
}

var (
	transitionConfirm = transition{
		name:        "confirm",
		to:          model.ReservationStatusConfirmed,
		from:        []model.ReservationStatus{model.ReservationStatusPending},
		event:       EventReservationConfirmed,
		stampColumn: "confirmed_at",
	}
	transitionSeat = transition{
		name:        "seat",
		to:          model.ReservationStatusSeated,
		from:        []model.ReservationStatus{model.ReservationStatusConfirmed},
		event:       EventReservationSeated,
		stampColumn: "seated_at",
	}
	transitionComplete = transition{
		name:        "complete",
		to:          model.ReservationStatusCompleted,
		from:        []model.ReservationStatus{model.ReservationStatusSeated},
		event:       EventReservationCompleted,
		stampColumn: "completed_at",
	}
	transitionCancel = transition{
		name:        "cancel",
		to:          model.ReservationStatusCancelled,
		from:        []model.ReservationStatus{model.ReservationStatusPending, model.ReservationStatusConfirmed},
		event:       EventReservationCancelled,
		stampColumn: "cancelled_at",
	}
	transitionNoShow = transition{
		name:  "no_show",
		to:    model.ReservationStatusNoShow,
		from:  []model.ReservationStatus{model.ReservationStatusConfirmed, model.ReservationStatusSeated},
		event: EventReservationNoShow,
	}
)

// Статусы, в которых бронь ещё можно редактировать.
var editableStatuses = []model.ReservationStatus{model.ReservationStatusPending, model.ReservationStatusConfirmed}

func statusIn(s model.ReservationStatus, set []model.ReservationStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func invalidTransition(current, requested model.ReservationStatus, action string) error {
	return newError(KindInvalidStateTransition,
		fmt.Sprintf("cannot %s a reservation in status %s", action, current),
		"currentStatus", string(current),
		"requestedStatus", string(requested),
	)
}

// Patch — изменяемые поля брони. nil — поле не меняется.
// Время брони и код подтверждения не меняются никогда.
type Patch struct {
	CustomerName    *string
	CustomerEmail   *string
	CustomerPhone   *string
	PartySize       *int
	DurationMinutes *int
	TableID         *uuid.UUID
	ClearTable      bool
	SpecialRequests *string
}

// LifecycleService ведёт брони после создания: подтверждение, посадка,
// завершение, отмена, неявка, правка.
type LifecycleService struct {
	store     *repository.Store
	clock     Clock
	publisher Publisher
	timeout   time.Duration
}

func NewLifecycleService(store *repository.Store, clock Clock, publisher Publisher, timeout time.Duration) *LifecycleService {
	return &LifecycleService{
		store:     store,
		clock:     clock,
		publisher: publisher,
		timeout:   timeout,
	}
}

func (s *LifecycleService) ConfirmReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.apply(ctx, id, transitionConfirm, nil, nil)
}

func (s *LifecycleService) SeatReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.apply(ctx, id, transitionSeat, nil, nil)
}

func (s *LifecycleService) CompleteReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.apply(ctx, id, transitionComplete, nil, nil)
}

func (s *LifecycleService) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return s.apply(ctx, id, transitionNoShow, nil, nil)
}

// CancelReservation доступна клиенту брони, владельцу ресторана и супер-админу.
func (s *LifecycleService) CancelReservation(ctx context.Context, id uuid.UUID, reason string, caller calendar.Caller) (*model.Reservation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(KindInvalidRequest, "cancellation reason is required")
	}

	guard := func(ctx context.Context, tx *repository.Store, res *model.Reservation) error {
		return authorize(ctx, tx, res, caller)
	}
	return s.apply(ctx, id, transitionCancel, map[string]any{"cancellation_reason": reason}, guard)
}

// apply выполняет переход в транзакции: строка брони блокируется, статус
// проверяется и меняется условным UPDATE, затем публикуется событие.
func (s *LifecycleService) apply(
	ctx context.Context,
	id uuid.UUID,
	t transition,
	extra map[string]any,
	guard func(context.Context, *repository.Store, *model.Reservation) error,
) (*model.Reservation, error) {
	var out *model.Reservation

	err := s.store.InTx(ctx, nil, func(tx *repository.Store) error {
		res, err := loadReservation(ctx, tx, id, repository.LockUpdate)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, tx, res); err != nil {
				return err
			}
		}
		if !statusIn(res.Status, t.from) {
			return invalidTransition(res.Status, t.to, t.name)
		}

		fields := make(map[string]any, len(extra)+1)
		for k, v := range extra {
			fields[k] = v
		}
		if t.stampColumn != "" {
			fields[t.stampColumn] = s.clock.Now().UTC()
		}

		ok, err := tx.Reservations.UpdateStatus(ctx, id, res.Status, t.to, fields)
		if err != nil {
			return storageFailure("update reservation status", err)
		}
		if !ok {
			// статус поменяли между чтением и записью
			cur, err := loadReservation(ctx, tx, id, repository.LockNone)
			if err != nil {
				return err
			}
			return invalidTransition(cur.Status, t.to, t.name)
		}

		out, err = loadReservation(ctx, tx, id, repository.LockNone)
		return err
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.clock, t.event, out)
	return out, nil
}

// UpdateReservation правит поля брони в статусах pending/confirmed. Смена
// размера компании, длительности или стола перепроверяется под теми же
// блокировками, что и при создании.
func (s *LifecycleService) UpdateReservation(ctx context.Context, id uuid.UUID, patch Patch, caller calendar.Caller) (*model.Reservation, error) {
	if patch.PartySize != nil && *patch.PartySize < 1 {
		return nil, newError(KindInvalidPartySize, "party size must be at least 1")
	}
	if patch.DurationMinutes != nil && *patch.DurationMinutes < 1 {
		return nil, newError(KindInvalidRequest, "duration must be positive")
	}
	if patch.CustomerName != nil && strings.TrimSpace(*patch.CustomerName) == "" {
		return nil, newError(KindInvalidRequest, "customer name must not be empty")
	}

	var out *model.Reservation
	err := runSerializable(ctx, s.store, s.timeout, func(tx *repository.Store) error {
		res, err := loadReservation(ctx, tx, id, repository.LockUpdate)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, res, caller); err != nil {
			return err
		}
		if !statusIn(res.Status, editableStatuses) {
			return newError(KindInvalidStateTransition,
				fmt.Sprintf("cannot update a reservation in status %s", res.Status),
				"currentStatus", string(res.Status),
				"requestedStatus", string(res.Status),
			)
		}

		fields := map[string]any{}
		capacityChanged := false

		if patch.CustomerName != nil {
			res.CustomerName = strings.TrimSpace(*patch.CustomerName)
			fields["customer_name"] = res.CustomerName
		}
		if patch.CustomerEmail != nil {
			res.CustomerEmail = repository.NormalizeEmail(*patch.CustomerEmail)
			fields["customer_email"] = res.CustomerEmail
		}
		if patch.CustomerPhone != nil {
			res.CustomerPhone = strings.TrimSpace(*patch.CustomerPhone)
			fields["customer_phone"] = res.CustomerPhone
		}
		if patch.SpecialRequests != nil {
			res.SpecialRequests = *patch.SpecialRequests
			fields["special_requests"] = res.SpecialRequests
		}
		if patch.PartySize != nil && *patch.PartySize != res.PartySize {
			res.PartySize = *patch.PartySize
			fields["party_size"] = res.PartySize
			capacityChanged = true
		}
		if patch.DurationMinutes != nil && *patch.DurationMinutes != res.DurationMinutes {
			res.DurationMinutes = *patch.DurationMinutes
			res.EndsAt = res.ReservedAt.Add(res.Duration())
			fields["duration_minutes"] = res.DurationMinutes
			fields["ends_at"] = res.EndsAt.UTC()
			capacityChanged = true
		}
		switch {
		case patch.ClearTable:
			if res.TableID != nil {
				res.TableID = nil
				fields["table_id"] = nil
				capacityChanged = true
			}
		case patch.TableID != nil:
			if res.TableID == nil || *res.TableID != *patch.TableID {
				tid := *patch.TableID
				res.TableID = &tid
				fields["table_id"] = tid
				capacityChanged = true
			}
		}

		if capacityChanged {
			rest, err := tx.Restaurants.GetByID(ctx, res.RestaurantID)
			if err != nil {
				return storageFailure("load restaurant", err)
			}
			policy, err := rest.Policy()
			if err != nil {
				return &Error{Kind: KindNotAcceptingReservations, Message: "restaurant reservation settings are invalid", Err: err}
			}
			if res.PartySize > policy.MaxPartySize {
				return newError(KindPartySizeExceeded,
					fmt.Sprintf("party of %d exceeds the maximum of %d", res.PartySize, policy.MaxPartySize),
					"partySize", fmt.Sprint(res.PartySize),
					"maxPartySize", fmt.Sprint(policy.MaxPartySize),
				)
			}
			if err := ensureTableFree(ctx, tx, res, &res.ID); err != nil {
				return err
			}
		}

		if err := tx.Reservations.UpdateFields(ctx, id, fields); err != nil {
			return storageFailure("update reservation", err)
		}
		out, err = loadReservation(ctx, tx, id, repository.LockNone)
		return err
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.clock, EventReservationUpdated, out)
	return out, nil
}

// authorize: клиент брони, владелец ресторана или супер-админ.
func authorize(ctx context.Context, tx *repository.Store, res *model.Reservation, caller calendar.Caller) error {
	if caller.Role == calendar.RoleSuperAdmin {
		return nil
	}
	if caller.ID != uuid.Nil && res.CustomerID != nil && *res.CustomerID == caller.ID {
		return nil
	}

	rest, err := tx.Restaurants.GetByID(ctx, res.RestaurantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return storageFailure("load restaurant", err)
	}
	if rest != nil && caller.ID != uuid.Nil && rest.OwnerID == caller.ID {
		return nil
	}

	return newError(KindUnauthorized, "only the reservation's customer, the restaurant owner or an administrator may do this",
		"reservationId", res.ID.String())
}

func loadReservation(ctx context.Context, repo *repository.Store, id uuid.UUID, lock repository.LockMode) (*model.Reservation, error) {
	res, err := repo.Reservations.GetByID(ctx, id, lock)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindReservationNotFound, "reservation not found", "reservationId", id.String())
		}
		return nil, storageFailure("load reservation", err)
	}
	return res, nil
}

// GetReservation возвращает бронь по ID.
func (s *LifecycleService) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return loadReservation(ctx, s.store, id, repository.LockNone)
}

// FindByConfirmationCode ищет бронь ресторана по коду, регистр не важен.
func (s *LifecycleService) FindByConfirmationCode(ctx context.Context, restaurantID uuid.UUID, code string) (*model.Reservation, error) {
	normalized, err := NormalizeConfirmationCode(code)
	if err != nil {
		return nil, newError(KindInvalidFormat, err.Error(), "confirmationCode", code)
	}
	res, err := s.store.Reservations.FindByCode(ctx, restaurantID, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindReservationNotFound, "reservation not found", "confirmationCode", normalized)
		}
		return nil, storageFailure("find reservation by code", err)
	}
	return res, nil
}

// ListReservations отдаёт брони ресторана, опционально за дату (в таймзоне ресторана)
// и со статусом, постранично.
func (s *LifecycleService) ListReservations(
	ctx context.Context,
	restaurantID uuid.UUID,
	date, status string,
	page, pageSize int,
) (calendar.Page[model.Reservation], error) {
	rest, err := s.store.Restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return calendar.Page[model.Reservation]{}, newError(KindRestaurantNotFound, "restaurant not found", "restaurantId", restaurantID.String())
		}
		return calendar.Page[model.Reservation]{}, storageFailure("load restaurant", err)
	}

	f := repository.ListFilter{RestaurantID: restaurantID}
	if status != "" {
		st := model.ReservationStatus(status)
		if !statusIn(st, allStatuses) {
			return calendar.Page[model.Reservation]{}, newError(KindInvalidRequest, "unknown reservation status", "status", status)
		}
		f.Status = st
	}
	if date != "" {
		loc, err := rest.Location()
		if err != nil {
			return calendar.Page[model.Reservation]{}, storageFailure("restaurant time zone", err)
		}
		day, err := time.ParseInLocation(DateLayout, date, loc)
		if err != nil {
			return calendar.Page[model.Reservation]{}, newError(KindInvalidFormat, "date must be YYYY-MM-DD", "date", date)
		}
		next := day.AddDate(0, 0, 1)
		f.From, f.To = &day, &next
	}

	items, err := s.store.Reservations.List(ctx, f)
	if err != nil {
		return calendar.Page[model.Reservation]{}, storageFailure("list reservations", err)
	}
	return calendar.Paginate(items, page, pageSize), nil
}

var allStatuses = []model.ReservationStatus{
	model.ReservationStatusPending,
	model.ReservationStatusConfirmed,
	model.ReservationStatusSeated,
	model.ReservationStatusCompleted,
	model.ReservationStatusCancelled,
	model.ReservationStatusNoShow,
}
