package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/db"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

// CreateRequest — запрос на создание брони.
type CreateRequest struct {
	TableID         *uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ReservedAt      time.Time
	PartySize       int
	DurationMinutes int // 0: длительность по умолчанию из настроек ресторана
	SpecialRequests string
}

// AdmissionService — единственный путь записи новых броней.
type AdmissionService struct {
	store     *repository.Store
	schedule  *ScheduleService
	clock     Clock
	publisher Publisher
	timeout   time.Duration
}

func NewAdmissionService(
	store *repository.Store,
	schedule *ScheduleService,
	clock Clock,
	publisher Publisher,
	timeout time.Duration,
) *AdmissionService {
	return &AdmissionService{
		store:     store,
		schedule:  schedule,
		clock:     clock,
		publisher: publisher,
		timeout:   timeout,
	}
}

// CreateReservation проверяет запрос и под блокировками либо сохраняет бронь,
// либо отказывает. При любой ошибке внутри транзакции ничего не сохраняется.
// caller: ID авторизованного клиента, nil для гостя.
func (s *AdmissionService) CreateReservation(
	ctx context.Context,
	restaurantID uuid.UUID,
	req CreateRequest,
	caller *uuid.UUID,
) (*model.Reservation, error) {
	b, err := loadBookable(ctx, s.store.Restaurants, restaurantID, req.PartySize)
	if err != nil {
		return nil, err
	}
	if req.ReservedAt.IsZero() {
		return nil, newError(KindInvalidRequest, "reservation instant is required")
	}
	if req.DurationMinutes < 0 {
		return nil, newError(KindInvalidRequest, "duration must not be negative")
	}

	at := req.ReservedAt.UTC()
	if err := checkAdvanceWindow(b.policy, s.clock.Now(), at); err != nil {
		return nil, err
	}

	authed := caller != nil && *caller != uuid.Nil
	if !authed && strings.TrimSpace(req.CustomerName) == "" {
		return nil, newError(KindInvalidRequest, "customer name is required")
	}

	open, err := s.schedule.IsOpenAt(ctx, b.restaurant, at)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, newError(KindOutsideOperatingHours,
			"restaurant is closed at the requested time",
			"reservationInstant", at.In(b.loc).Format(time.RFC3339),
		)
	}

	duration := b.policy.DefaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	res := &model.Reservation{
		RestaurantID:    restaurantID,
		TableID:         req.TableID,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		ReservedAt:      at,
		EndsAt:          at.Add(duration),
		PartySize:       req.PartySize,
		DurationMinutes: int(duration / time.Minute),
		SpecialRequests: req.SpecialRequests,
	}

	err = runSerializable(ctx, s.store, s.timeout, func(tx *repository.Store) error {
		// при повторе транзакции поля брони выставляются заново
		res.ID = uuid.Nil

		// гость заводится в той же транзакции: отказ не оставляет лишних записей
		in := req
		customerID, err := resolveCustomer(ctx, tx, &in, caller)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.CustomerName) == "" {
			return newError(KindInvalidRequest, "customer name is required")
		}
		res.CustomerID = customerID
		res.CustomerName = strings.TrimSpace(in.CustomerName)
		res.CustomerEmail = repository.NormalizeEmail(in.CustomerEmail)

		if err := ensureTableFree(ctx, tx, res, nil); err != nil {
			return err
		}

		code, err := allocateCode(ctx, tx.Reservations, restaurantID)
		if err != nil {
			return err
		}
		res.ConfirmationCode = code

		res.Status = model.ReservationStatusPending
		res.ConfirmedAt = nil
		if b.policy.AutoConfirm {
			now := s.clock.Now().UTC()
			res.Status = model.ReservationStatusConfirmed
			res.ConfirmedAt = &now
		}

		if err := tx.Reservations.Create(ctx, res); err != nil {
			return storageFailure("create reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.clock, EventReservationCreated, res)
	return res, nil
}

// checkAdvanceWindow: не в прошлом, не раньше минимального уведомления
// (ровно на границе можно), не дальше горизонта бронирования.
func checkAdvanceWindow(policy model.BookingPolicy, now, at time.Time) error {
	if at.Before(now) {
		return newError(KindPastDateRejected, "reservation time is in the past",
			"reservationInstant", at.Format(time.RFC3339))
	}
	if earliest := now.Add(policy.MinNotice()); at.Before(earliest) {
		return newError(KindInsufficientNotice,
			fmt.Sprintf(reasonNoticeFormat, policy.MinAdvanceBookingHours),
			"reservationInstant", at.Format(time.RFC3339),
			"earliestInstant", earliest.UTC().Format(time.RFC3339),
		)
	}
	if latest := now.Add(policy.MaxAdvance()); at.After(latest) {
		return newError(KindTooFarInAdvance,
			fmt.Sprintf("reservations open at most %d days in advance", policy.MaxAdvanceBookingDays),
			"reservationInstant", at.Format(time.RFC3339),
			"latestInstant", latest.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

// resolveCustomer: авторизованный клиент берётся как есть; гость с email
// находится по адресу или заводится с одноразовым случайным паролем.
func resolveCustomer(ctx context.Context, tx *repository.Store, req *CreateRequest, caller *uuid.UUID) (*uuid.UUID, error) {
	if caller != nil && *caller != uuid.Nil {
		id := *caller
		if req.CustomerName == "" || req.CustomerEmail == "" {
			if c, err := tx.Customers.GetByID(ctx, id); err == nil {
				if req.CustomerName == "" {
					req.CustomerName = c.Name
				}
				if req.CustomerEmail == "" {
					req.CustomerEmail = c.Email
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, storageFailure("load customer", err)
			}
		}
		return &id, nil
	}

	if strings.TrimSpace(req.CustomerEmail) == "" {
		return nil, nil
	}

	existing, err := tx.Customers.FindByEmail(ctx, req.CustomerEmail)
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageFailure("find customer", err)
	}

	hash, err := placeholderPasswordHash()
	if err != nil {
		return nil, storageFailure("generate guest credential", err)
	}
	guest := &model.Customer{
		Email:        req.CustomerEmail,
		Name:         strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.CustomerPhone),
		PasswordHash: hash,
		IsGuest:      true,
	}
	if err := tx.Customers.Create(ctx, guest); err != nil {
		// параллельный запрос мог создать того же гостя
		if again, ferr := tx.Customers.FindByEmail(ctx, req.CustomerEmail); ferr == nil {
			return &again.ID, nil
		}
		return nil, storageFailure("create guest customer", err)
	}
	return &guest.ID, nil
}

func placeholderPasswordHash() (string, error) {
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ensureTableFree проверяет, что для брони есть место, держа блокировки до конца
// транзакции. С конкретным столом: стол блокируется на запись, пересекающиеся
// брони этого стола читаются с разделяемой блокировкой. Без стола: блокируются
// все подходящие столы и считается, остался ли хоть один свободный.
func ensureTableFree(ctx context.Context, tx *repository.Store, res *model.Reservation, excludeID *uuid.UUID) error {
	window := calendar.Occupancy(res.ReservedAt, res.Duration(), OccupancyBuffer)

	if res.TableID != nil {
		table, err := tx.Tables.GetByID(ctx, res.RestaurantID, *res.TableID, repository.LockUpdate)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(KindTableNotFound, "table not found in this restaurant", "tableId", res.TableID.String())
			}
			return storageFailure("lock table", err)
		}
		if !table.IsActive {
			return newError(KindTableNotFound, "table is not in service", "tableId", table.ID.String())
		}
		if table.Capacity < res.PartySize {
			return newError(KindCapacityTooSmall,
				fmt.Sprintf("table %d seats %d, party of %d", table.Number, table.Capacity, res.PartySize),
				"tableId", table.ID.String(),
				"capacity", fmt.Sprint(table.Capacity),
				"partySize", fmt.Sprint(res.PartySize),
			)
		}

		conflicts, err := tx.Reservations.ListOverlapping(ctx, repository.OverlapQuery{
			RestaurantID: res.RestaurantID,
			TableID:      &table.ID,
			From:         window.Start,
			To:           window.End,
			Statuses:     model.HoldingStatuses,
			ExcludeID:    excludeID,
		}, repository.LockShare)
		if err != nil {
			return storageFailure("check table conflicts", err)
		}
		if len(conflicts) > 0 {
			return newError(KindTableUnavailable,
				fmt.Sprintf("table %d is already booked around %s", table.Number, res.ReservedAt.Format(time.RFC3339)),
				"tableId", table.ID.String(),
				"tableNumber", fmt.Sprint(table.Number),
				"windowStart", window.Start.UTC().Format(time.RFC3339),
				"windowEnd", window.End.UTC().Format(time.RFC3339),
				"conflictingReservationId", conflicts[0].ID.String(),
			)
		}
		return ensureSeatsForUntabled(ctx, tx, res, window, excludeID)
	}

	tables, err := tx.Tables.ListActive(ctx, res.RestaurantID, res.PartySize, repository.LockUpdate)
	if err != nil {
		return storageFailure("lock tables", err)
	}
	overlapping, err := tx.Reservations.ListOverlapping(ctx, repository.OverlapQuery{
		RestaurantID: res.RestaurantID,
		From:         window.Start,
		To:           window.End,
		Statuses:     model.HoldingStatuses,
		ExcludeID:    excludeID,
	}, repository.LockShare)
	if err != nil {
		return storageFailure("check table conflicts", err)
	}
	if freeTables(tables, overlapping) == 0 {
		return newError(KindTableUnavailable,
			fmt.Sprintf("no table for a party of %d around %s", res.PartySize, res.ReservedAt.Format(time.RFC3339)),
			"partySize", fmt.Sprint(res.PartySize),
			"windowStart", window.Start.UTC().Format(time.RFC3339),
			"windowEnd", window.End.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

// ensureSeatsForUntabled не даёт занять конкретный стол, если после этого
// брони без стола в том же окне останутся без свободного стола.
func ensureSeatsForUntabled(ctx context.Context, tx *repository.Store, res *model.Reservation, window calendar.TimeRange, excludeID *uuid.UUID) error {
	tables, err := tx.Tables.ListActive(ctx, res.RestaurantID, 0, repository.LockUpdate)
	if err != nil {
		return storageFailure("lock tables", err)
	}
	overlapping, err := tx.Reservations.ListOverlapping(ctx, repository.OverlapQuery{
		RestaurantID: res.RestaurantID,
		From:         window.Start,
		To:           window.End,
		Statuses:     model.HoldingStatuses,
		ExcludeID:    excludeID,
	}, repository.LockShare)
	if err != nil {
		return storageFailure("check table conflicts", err)
	}

	untabled := 0
	for _, r := range overlapping {
		if r.TableID == nil {
			untabled++
		}
	}
	if untabled == 0 {
		return nil
	}
	// стол этой брони считается занятым
	withThis := append(overlapping, model.Reservation{TableID: res.TableID})
	if tableBalance(tables, withThis) < 0 {
		return newError(KindTableUnavailable,
			fmt.Sprintf("%d reservations without a table already hold the remaining tables around %s", untabled, res.ReservedAt.Format(time.RFC3339)),
			"tableId", res.TableID.String(),
			"untabledReservations", fmt.Sprint(untabled),
			"windowStart", window.Start.UTC().Format(time.RFC3339),
			"windowEnd", window.End.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

func allocateCode(ctx context.Context, repo repository.ReservationRepository, restaurantID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateConfirmationCode()
		if err != nil {
			return "", storageFailure("generate confirmation code", err)
		}
		taken, err := repo.CodeExists(ctx, restaurantID, code)
		if err != nil {
			return "", storageFailure("check confirmation code", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", newError(KindStorageFailure, "could not allocate a unique confirmation code")
}

// runSerializable выполняет fn в сериализуемой транзакции с ограничением по времени.
// Конфликт сериализации повторяется один раз; повторный конфликт означает, что
// место занял параллельный запрос.
func runSerializable(ctx context.Context, store *repository.Store, timeout time.Duration, fn func(tx *repository.Store) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = store.InTx(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if timedOut(ctx, err) {
			return &Error{Kind: KindAdmissionTimedOut, Message: "reservation transaction timed out", Err: err}
		}
		if !db.IsRetryable(err) {
			break
		}
		log.Printf("admission: retrying after serialization conflict: %v", err)
	}

	if db.IsRetryable(err) {
		return &Error{Kind: KindTableUnavailable, Message: "the table was taken by a concurrent reservation", Err: err}
	}
	return storageFailure("reservation transaction", err)
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// publish отправляет событие; ошибка только логируется.
func publish(ctx context.Context, p Publisher, clock Clock, name string, res *model.Reservation) {
	if p == nil {
		return
	}
	ev := Event{
		Name:         name,
		RestaurantID: res.RestaurantID,
		OccurredAt:   clock.Now().UTC(),
		Reservation:  NewReservationView(res),
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("notify: publish %s for reservation %s failed: %v", name, res.ID, err)
	}
}
