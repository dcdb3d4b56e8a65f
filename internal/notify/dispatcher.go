package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Leganyst/reservation-core/internal/repository"
)

// Sink — получатель событий из outbox (брокер, лог и т.п.).
type Sink interface {
	Send(ctx context.Context, eventType string, payload []byte) error
}

type Dispatcher struct {
	repo      repository.OutboxRepository
	sink      Sink
	maxRetry  int
	batchSize int
	now       func() time.Time
}

func NewDispatcher(repo repository.OutboxRepository, sink Sink, maxRetry, batchSize int) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		sink:      sink,
		maxRetry:  maxRetry,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DispatchOnce отправляет одну пачку. Возвращает число отправленных сообщений.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.repo.GetPendingBatch(ctx, d.maxRetry, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	processed := 0
	for i := range msgs {
		msg := &msgs[i]

		if !json.Valid(msg.Payload) {
			log.Printf("outbox: message %s has invalid payload", msg.ID)
			if err := d.repo.IncrementRetry(ctx, msg); err != nil {
				log.Printf("outbox: failed to save message %s: %v", msg.ID, err)
			}
			continue
		}

		if err := d.sink.Send(ctx, msg.Type, msg.Payload); err != nil {
			log.Printf("outbox: failed to publish %s: %v", msg.Type, err)
			if err := d.repo.IncrementRetry(ctx, msg); err != nil {
				log.Printf("outbox: failed to save message %s: %v", msg.ID, err)
			}
			continue
		}

		if err := d.repo.MarkProcessed(ctx, msg, d.now()); err != nil {
			log.Printf("outbox: failed to save message %s: %v", msg.ID, err)
			continue
		}
		processed++
	}

	return processed, nil
}
