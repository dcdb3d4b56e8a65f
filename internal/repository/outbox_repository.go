package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
)

type OutboxRepository interface {
	Insert(ctx context.Context, msg *model.OutboxMessage) error
	// Неотправленные сообщения с RetryCount < maxRetry, от старых к новым.
	GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]model.OutboxMessage, error)
	MarkProcessed(ctx context.Context, msg *model.OutboxMessage, at time.Time) error
	IncrementRetry(ctx context.Context, msg *model.OutboxMessage) error
}

type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) Insert(ctx context.Context, msg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *GormOutboxRepository) GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage

	q := r.db.WithContext(ctx).
		Where("processed_at IS NULL")
	if maxRetry > 0 {
		q = q.Where("retry_count < ?", maxRetry)
	}
	if batchSize > 0 {
		q = q.Limit(batchSize)
	}

	if err := q.Order("occurred_at ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *GormOutboxRepository) MarkProcessed(ctx context.Context, msg *model.OutboxMessage, at time.Time) error {
	at = at.UTC()
	if err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Update("processed_at", at).Error; err != nil {
		return err
	}
	msg.ProcessedAt = &at
	return nil
}

func (r *GormOutboxRepository) IncrementRetry(ctx context.Context, msg *model.OutboxMessage) error {
	if err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error; err != nil {
		return err
	}
	msg.RetryCount++
	return nil
}
