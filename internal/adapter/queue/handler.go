package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery from the order.events exchange. A nacked
// delivery comes back, so implementations must tolerate seeing the same
// event twice.
// Return nil => ACK; return error => NACK (requeue behavior set on the Router).
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
