package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
	"github.com/Leganyst/reservation-core/internal/service"
)

// OutboxPublisher складывает события в outbox_messages; отправкой в брокер
// занимается Dispatcher.
type OutboxPublisher struct {
	repo repository.OutboxRepository
}

func NewOutboxPublisher(repo repository.OutboxRepository) *OutboxPublisher {
	return &OutboxPublisher{repo: repo}
}

func (p *OutboxPublisher) Publish(ctx context.Context, ev service.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Name, err)
	}

	msg := &model.OutboxMessage{
		Type:       ev.Name,
		Payload:    datatypes.JSON(payload),
		OccurredAt: ev.OccurredAt.UTC(),
	}
	if err := p.repo.Insert(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.Name, err)
	}
	return nil
}
