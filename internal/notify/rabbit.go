package notify

import (
	"context"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/abstractions"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	messaging "github.com/rodolfodevapp/eventshop-messaging-go/rabbitmq"
)

// NewRabbitBus создаёт шину-отправитель в exchange событий броней.
func NewRabbitBus(uri, exchange, queuePrefix string) *messaging.RabbitMqEventBus {
	opts := messaging.RabbitMqOptions{
		URI:          uri,
		ExchangeName: exchange,
		QueuePrefix:  queuePrefix,
		Prefetch:     32,
		RetryDelayMs: 30000,
	}
	return messaging.NewRabbitMqEventBus(opts, nil, nil)
}

// RabbitSink публикует сообщения outbox в шину; routing key равен имени события.
type RabbitSink struct {
	bus abstractions.EventBus
}

func NewRabbitSink(bus abstractions.EventBus) *RabbitSink {
	return &RabbitSink{bus: bus}
}

func (s *RabbitSink) Send(ctx context.Context, eventType string, payload []byte) error {
	envelope := primitives.NewIntegrationEventEnvelope(eventType, string(payload))
	envelope.SetRoutingKey(eventType)
	return s.bus.Publish(ctx, &envelope)
}
