package notify

import (
	"context"
	"errors"

	"github.com/Leganyst/reservation-core/internal/service"
)

// Fanout отдаёт событие каждому получателю; ошибки собираются вместе.
type Fanout []service.Publisher

func (f Fanout) Publish(ctx context.Context, ev service.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
