package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
)

type IntervalRepository interface {
	Create(ctx context.Context, interval *model.OperatingInterval) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.OperatingInterval, error)
	Update(ctx context.Context, interval *model.OperatingInterval) error
	// Активные интервалы ресторана на день недели, по времени открытия.
	ListActive(ctx context.Context, restaurantID uuid.UUID, weekday time.Weekday) ([]model.OperatingInterval, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type GormIntervalRepository struct {
	db *gorm.DB
}

func NewGormIntervalRepository(db *gorm.DB) *GormIntervalRepository {
	return &GormIntervalRepository{db: db}
}

func (r *GormIntervalRepository) Create(ctx context.Context, interval *model.OperatingInterval) error {
	return r.db.WithContext(ctx).Create(interval).Error
}

func (r *GormIntervalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OperatingInterval, error) {
	var i model.OperatingInterval
	if err := r.db.WithContext(ctx).First(&i, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *GormIntervalRepository) Update(ctx context.Context, interval *model.OperatingInterval) error {
	return r.db.WithContext(ctx).Save(interval).Error
}

func (r *GormIntervalRepository) ListActive(
	ctx context.Context,
	restaurantID uuid.UUID,
	weekday time.Weekday,
) ([]model.OperatingInterval, error) {
	var intervals []model.OperatingInterval
	// "HH:MM" с ведущими нулями сортируется лексикографически корректно.
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND weekday = ? AND is_active = ?", restaurantID, weekday, true).
		Order("open_time ASC").
		Find(&intervals).Error
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

func (r *GormIntervalRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.OperatingInterval{}).
		Where("id = ?", id).
		Update("is_active", false).
		Error
}
