package mq

import "context"

// Publisher sends envelopes to the fabric.
type Publisher interface {
	Publish(ctx context.Context, key RoutingKey, envelope Envelope) error
}

// Delivery is a message received from a queue.
type Delivery struct {
	Body []byte

	// Ack tells the transport the message is handled.
	Ack func() error

	// Nack tells the transport the message is not handled.
	//
	// When requeue is true, the transport will redeliver it.
	Nack func(requeue bool) error
}

// Consumer receives messages from a queue bound to a routing key.
type Consumer interface {
	// Consume starts receiving.
	//
	// The returned channel is closed when ctx is done or the transport is closed.
	Consume(ctx context.Context, key RoutingKey) (<-chan Delivery, error)
}

// Transport is a message fabric.
type Transport interface {
	Publisher
	Consumer
	Close() error
}

// Emit publishes a domain event of typ carrying data.
func Emit(ctx context.Context, pub Publisher, typ Type, data any, options ...EnvelopeOption) error {
	e, err := NewEnvelope(typ, data, options...)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, EventKey(typ), e)
}

// Send publishes a command of typ carrying data to the queue of key.
func Send(ctx context.Context, pub Publisher, key RoutingKey, typ Type, data any, options ...EnvelopeOption) error {
	e, err := NewEnvelope(typ, data, options...)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, key, e)
}
