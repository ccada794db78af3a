package amqp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/pkg/common/domain"
)

const (
	ExchangeName = "storefront_events"
	ExchangeType = "topic"

	connectAttempts = 5
	publishTimeout  = 5 * time.Second
)

// Setup dials the broker and declares the event exchange, retrying briefly to
// ride out container startup ordering.
func Setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < connectAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, errors.Wrap(err, "open channel")
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, true, false, false, false, nil); err != nil {
		return nil, nil, errors.Wrap(err, "declare exchange")
	}
	return conn, ch, nil
}

// NewDispatcher publishes domain events as JSON to the topic exchange with
// routing key order.<EventType>.
func NewDispatcher(ch *amqp.Channel) domain.EventDispatcher {
	return &dispatcher{ch: ch}
}

type dispatcher struct {
	ch *amqp.Channel
}

func (d *dispatcher) Dispatch(event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return d.ch.PublishWithContext(ctx,
		ExchangeName,
		"order."+event.Type(),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Type:        event.Type(),
			Body:        body,
		},
	)
}
