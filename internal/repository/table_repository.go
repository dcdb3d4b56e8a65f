package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
)

type TableRepository interface {
	Create(ctx context.Context, table *model.Table) error
	// Стол ресторана по ID с блокировкой строки (или без, при LockNone).
	GetByID(ctx context.Context, restaurantID, id uuid.UUID, lock LockMode) (*model.Table, error)
	// Активные столы вместимостью не меньше minCapacity,
	// от меньших к большим, при равной вместимости по номеру.
	ListActive(ctx context.Context, restaurantID uuid.UUID, minCapacity int, lock LockMode) ([]model.Table, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type GormTableRepository struct {
	db *gorm.DB
}

func NewGormTableRepository(db *gorm.DB) *GormTableRepository {
	return &GormTableRepository{db: db}
}

func (r *GormTableRepository) Create(ctx context.Context, table *model.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *GormTableRepository) GetByID(ctx context.Context, restaurantID, id uuid.UUID, lock LockMode) (*model.Table, error) {
	var t model.Table
	q := withLock(r.db.WithContext(ctx), lock).
		Where("id = ? AND restaurant_id = ?", id, restaurantID)
	if err := q.First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTableRepository) ListActive(
	ctx context.Context,
	restaurantID uuid.UUID,
	minCapacity int,
	lock LockMode,
) ([]model.Table, error) {
	var tables []model.Table

	q := withLock(r.db.WithContext(ctx), lock).
		Model(&model.Table{}).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true)
	if minCapacity > 0 {
		q = q.Where("capacity >= ?", minCapacity)
	}

	if err := q.Order("capacity ASC").Order("number ASC").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *GormTableRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Table{}).
		Where("id = ?", id).
		Update("is_active", active).
		Error
}
