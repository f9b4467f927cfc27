// Package memory provides an in-process message fabric.
//
// It is used in tests and in single-process deployments.
// Messages are delivered at-least-once: a message nacked with requeue is delivered again.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/opst/pht-central/pkg/mq"
)

var ErrClosed = errors.New("broker is closed")

// Published is a record of published envelope.
type Published struct {
	Key      mq.RoutingKey
	Envelope mq.Envelope
}

type Broker struct {
	mu        sync.Mutex
	closed    bool
	queues    map[mq.RoutingKey]chan mq.Delivery
	published []Published
	buffer    int
}

var _ mq.Transport = &Broker{}

type Option func(*Broker) *Broker

// WithBuffer sets the capacity of each queue. Default is 1024.
func WithBuffer(n int) Option {
	return func(b *Broker) *Broker {
		b.buffer = n
		return b
	}
}

func New(options ...Option) *Broker {
	b := &Broker{queues: map[mq.RoutingKey]chan mq.Delivery{}, buffer: 1024}
	for _, opt := range options {
		b = opt(b)
	}
	return b
}

func (b *Broker) queue(key mq.RoutingKey) chan mq.Delivery {
	q, ok := b.queues[key]
	if !ok {
		q = make(chan mq.Delivery, b.buffer)
		b.queues[key] = q
	}
	return q
}

func (b *Broker) Publish(ctx context.Context, key mq.RoutingKey, envelope mq.Envelope) error {
	body, err := mq.Marshal(envelope)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.published = append(b.published, Published{Key: key, Envelope: envelope})
	q := b.queue(key)
	b.mu.Unlock()

	return b.enqueue(ctx, q, body)
}

// PublishRaw enqueues a raw message body, bypassing envelope encoding.
func (b *Broker) PublishRaw(ctx context.Context, key mq.RoutingKey, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	q := b.queue(key)
	b.mu.Unlock()
	return b.enqueue(ctx, q, body)
}

func (b *Broker) enqueue(ctx context.Context, q chan mq.Delivery, body []byte) error {
	var d mq.Delivery
	d = mq.Delivery{
		Body: body,
		Ack:  func() error { return nil },
		Nack: func(requeue bool) error {
			if !requeue {
				return nil
			}
			go b.enqueue(context.Background(), q, d.Body)
			return nil
		},
	}

	defer func() {
		// send on closed queue. the broker is closed meanwhile.
		recover()
	}()
	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns the queue of the key.
//
// Competing consumers of the same key share the queue.
func (b *Broker) Consume(ctx context.Context, key mq.RoutingKey) (<-chan mq.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.queue(key), nil
}

// Published returns envelopes published to key so far.
//
// With no keys, it returns all published envelopes.
func (b *Broker) Published(keys ...mq.RoutingKey) []Published {
	b.mu.Lock()
	defer b.mu.Unlock()

	ret := []Published{}
	for _, p := range b.published {
		if len(keys) == 0 {
			ret = append(ret, p)
			continue
		}
		for _, k := range keys {
			if p.Key == k {
				ret = append(ret, p)
				break
			}
		}
	}
	return ret
}

// Close closes all queues. Consumers will see their channel closed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	return nil
}
