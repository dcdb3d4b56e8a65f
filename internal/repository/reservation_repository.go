package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
)

// OverlapQuery описывает поиск броней, пересекающих окно [From, To).
// Бронь занимает [reserved_at, ends_at).
type OverlapQuery struct {
	RestaurantID uuid.UUID
	TableID      *uuid.UUID // nil: по всем столам и броням без стола
	From, To     time.Time
	Statuses     []model.ReservationStatus
	ExcludeID    *uuid.UUID
}

// ListFilter — фильтр списка броней ресторана.
type ListFilter struct {
	RestaurantID uuid.UUID
	From, To     *time.Time
	Status       model.ReservationStatus // пусто: любой
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID, lock LockMode) (*model.Reservation, error)
	FindByCode(ctx context.Context, restaurantID uuid.UUID, code string) (*model.Reservation, error)
	CodeExists(ctx context.Context, restaurantID uuid.UUID, code string) (bool, error)
	ListOverlapping(ctx context.Context, q OverlapQuery, lock LockMode) ([]model.Reservation, error)
	List(ctx context.Context, f ListFilter) ([]model.Reservation, error)
	// UpdateStatus меняет статус, только если он всё ещё равно from.
	// Возвращает false, если строку успели изменить.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ReservationStatus, fields map[string]any) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	reservation.ReservedAt = reservation.ReservedAt.UTC()
	reservation.EndsAt = reservation.EndsAt.UTC()
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id uuid.UUID, lock LockMode) (*model.Reservation, error) {
	var res model.Reservation
	if err := withLock(r.db.WithContext(ctx), lock).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) FindByCode(ctx context.Context, restaurantID uuid.UUID, code string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND confirmation_code = ?", restaurantID, code).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) CodeExists(ctx context.Context, restaurantID uuid.UUID, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("restaurant_id = ? AND confirmation_code = ?", restaurantID, code).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListOverlapping возвращает сами строки, а не COUNT: Postgres не допускает
// FOR SHARE вместе с агрегатами.
func (r *GormReservationRepository) ListOverlapping(
	ctx context.Context,
	q OverlapQuery,
	lock LockMode,
) ([]model.Reservation, error) {
	var out []model.Reservation

	tx := withLock(r.db.WithContext(ctx), lock).
		Model(&model.Reservation{}).
		Where("restaurant_id = ?", q.RestaurantID).
		Where("reserved_at < ? AND ends_at > ?", q.To.UTC(), q.From.UTC())

	if q.TableID != nil {
		tx = tx.Where("table_id = ?", *q.TableID)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if q.ExcludeID != nil {
		tx = tx.Where("id <> ?", *q.ExcludeID)
	}

	if err := tx.Order("reserved_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormReservationRepository) List(ctx context.Context, f ListFilter) ([]model.Reservation, error) {
	var out []model.Reservation

	q := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("restaurant_id = ?", f.RestaurantID)
	if f.From != nil {
		q = q.Where("reserved_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("reserved_at < ?", f.To.UTC())
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if err := q.Order("reserved_at ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormReservationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.ReservationStatus,
	fields map[string]any,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	for k, v := range fields {
		update[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormReservationRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}
