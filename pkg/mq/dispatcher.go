package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/loop"
	"github.com/sirupsen/logrus"
)

// Handler handles an envelope.
//
// When it returns nil, the message is acknowledged.
// Otherwise, the message is left to be redelivered by the transport,
// unless the error is one which redelivery cannot fix (see Requeueable).
type Handler func(ctx context.Context, envelope Envelope) error

var ErrAlreadyStarted = errors.New("dispatcher has been started")

// Dispatcher routes envelopes from one inbound queue to handlers by their type.
//
// Dispatchers are independent of each other. Run one per service domain.
type Dispatcher struct {
	name     string
	key      RoutingKey
	consumer Consumer
	logger   logrus.FieldLogger

	mu       sync.Mutex
	required []Type
	handlers map[Type]Handler
	started  bool
}

// NewDispatcher creates a dispatcher consuming the queue of key.
//
// # Args
//
// - name: name of the service owning the queue. It is used for logging.
//
// - key: routing key of the queue.
//
// - consumer: transport to receive messages.
//
// - logger
//
// - required: types which should be registered before Start.
func NewDispatcher(
	name string,
	key RoutingKey,
	consumer Consumer,
	logger logrus.FieldLogger,
	required ...Type,
) *Dispatcher {
	return &Dispatcher{
		name:     name,
		key:      key,
		consumer: consumer,
		logger:   logger.WithField("dispatcher", name),
		required: required,
		handlers: map[Type]Handler{},
	}
}

// Register a handler for the type.
//
// It should be called before Start. Registering a type twice is an error.
func (d *Dispatcher) Register(typ Type, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	if handler == nil {
		return xe.Errorf(xe.Validation, "handler for %s is nil", typ)
	}
	if _, ok := d.handlers[typ]; ok {
		return xe.Errorf(xe.Validation, "handler for %s is registered twice", typ)
	}
	d.handlers[typ] = handler
	return nil
}

// Types returns registered types, sorted.
func (d *Dispatcher) Types() []Type {
	d.mu.Lock()
	defer d.mu.Unlock()

	types := make([]Type, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Validate checks all required types have their handlers.
func (d *Dispatcher) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validate()
}

func (d *Dispatcher) validate() error {
	missing := []string{}
	for _, t := range d.required {
		if _, ok := d.handlers[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return xe.Errorf(
		xe.Validation, "dispatcher %s has no handlers for: %s",
		d.name, strings.Join(missing, ", "),
	)
}

// Start consuming and dispatching, until ctx is done or the transport stops delivering.
//
// Start fails without consuming when a required type is not registered.
// When the transport stops delivering while ctx is alive, it returns xe.TransientIntegration error.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := d.validate(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.started = true
	d.mu.Unlock()

	deliveries, err := d.consumer.Consume(ctx, d.key)
	if err != nil {
		return xe.Wrap(err)
	}

	d.logger.WithField("queue", d.key).Infof("start dispatching: %v", d.Types())

	handled, err := loop.Drain(ctx, deliveries, d.Dispatch)
	d.logger.Infof("stop dispatching (%d messages handled)", handled)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return xe.Errorf(xe.TransientIntegration, "dispatcher %s: transport stopped delivering", d.name)
}

// Dispatch a delivery to its handler, then ack or nack it.
//
// Messages which are not envelopes, or whose type has no handlers,
// are rejected without requeue.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) {
	envelope, err := Unmarshal(delivery.Body)
	if err != nil {
		d.logger.WithError(err).Warn("reject malformed message")
		d.settle(delivery, false, false)
		return
	}

	logger := d.logger.WithFields(logrus.Fields{"type": envelope.Type, "id": envelope.Id})

	d.mu.Lock()
	handler, ok := d.handlers[envelope.Type]
	d.mu.Unlock()
	if !ok {
		logger.Warn("reject message: no handlers")
		d.settle(delivery, false, false)
		return
	}

	if err := invoke(ctx, handler, envelope); err != nil {
		requeue := Requeueable(err)
		logger.WithError(err).WithField("trace", xe.Trace(err)).
			Errorf("handler failed (requeue = %v)", requeue)
		d.settle(delivery, false, requeue)
		return
	}

	logger.Debug("handled")
	d.settle(delivery, true, false)
}

// Requeueable tells whether a message failed with err should be delivered again.
//
// Malformed messages and failed guards (precondition, state, missing entity)
// are not. Integration failures, stream errors and unclassified errors are.
func Requeueable(err error) bool {
	k, ok := xe.KindOf(err)
	if !ok {
		return true
	}
	switch k {
	case xe.Validation, xe.Precondition, xe.InvalidState, xe.NotFound:
		return false
	default:
		return true
	}
}

func (d *Dispatcher) settle(delivery Delivery, ack bool, requeue bool) {
	var err error
	if ack {
		if delivery.Ack != nil {
			err = delivery.Ack()
		}
	} else if delivery.Nack != nil {
		err = delivery.Nack(requeue)
	}
	if err != nil {
		d.logger.WithError(err).Error("failed to settle message")
	}
}

func invoke(ctx context.Context, handler Handler, envelope Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, envelope)
}
