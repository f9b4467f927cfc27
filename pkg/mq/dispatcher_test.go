package mq_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/mq/memory"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type settlement struct {
	Acked   bool
	Nacked  bool
	Requeue bool
}

func delivery(t *testing.T, body []byte) (mq.Delivery, *settlement) {
	t.Helper()
	s := &settlement{}
	return mq.Delivery{
		Body: body,
		Ack: func() error {
			s.Acked = true
			return nil
		},
		Nack: func(requeue bool) error {
			s.Nacked = true
			s.Requeue = requeue
			return nil
		},
	}, s
}

func envelopeBody(t *testing.T, typ mq.Type, data any) []byte {
	t.Helper()
	e, err := mq.NewEnvelope(typ, data)
	if err != nil {
		t.Fatal(err)
	}
	body, err := mq.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestDispatcher_Register(t *testing.T) {
	t.Run("it rejects duplicated registration", func(t *testing.T) {
		d := mq.NewDispatcher("test", mq.OrchestratorCommand, memory.New(), quietLogger())
		h := func(context.Context, mq.Envelope) error { return nil }
		if err := d.Register(mq.TrainBuild, h); err != nil {
			t.Fatal(err)
		}
		if err := d.Register(mq.TrainBuild, h); err == nil {
			t.Error("duplicated registration is accepted")
		}
	})

	t.Run("it rejects nil handler", func(t *testing.T) {
		d := mq.NewDispatcher("test", mq.OrchestratorCommand, memory.New(), quietLogger())
		if err := d.Register(mq.TrainBuild, nil); err == nil {
			t.Error("nil handler is accepted")
		}
	})

	t.Run("it lists registered types in order", func(t *testing.T) {
		d := mq.NewDispatcher("test", mq.ResultServiceCommand, memory.New(), quietLogger())
		h := func(context.Context, mq.Envelope) error { return nil }
		for _, typ := range []mq.Type{mq.ResultServiceStatus, mq.ResultServiceDownload, mq.ResultServiceExtract} {
			if err := d.Register(typ, h); err != nil {
				t.Fatal(err)
			}
		}
		want := []mq.Type{mq.ResultServiceDownload, mq.ResultServiceExtract, mq.ResultServiceStatus}
		if got := d.Types(); !cmp.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestDispatcher_Validate(t *testing.T) {
	t.Run("it fails to start when required handler is missing", func(t *testing.T) {
		broker := memory.New()
		d := mq.NewDispatcher(
			"test", mq.ResultServiceCommand, broker, quietLogger(),
			mq.ResultServiceDownload, mq.ResultServiceExtract,
		)
		if err := d.Register(mq.ResultServiceDownload, func(context.Context, mq.Envelope) error { return nil }); err != nil {
			t.Fatal(err)
		}

		err := d.Start(context.Background())
		if k, ok := xe.KindOf(err); !ok || k != xe.Validation {
			t.Errorf("got %v, want Validation error", err)
		}
	})

	t.Run("it passes when all required handlers are registered", func(t *testing.T) {
		d := mq.NewDispatcher(
			"test", mq.ResultServiceCommand, memory.New(), quietLogger(),
			mq.ResultServiceDownload,
		)
		if err := d.Register(mq.ResultServiceDownload, func(context.Context, mq.Envelope) error { return nil }); err != nil {
			t.Fatal(err)
		}
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDispatcher_Dispatch(t *testing.T) {
	type When struct {
		body       func(t *testing.T) []byte
		handlerErr error
		panics     bool
	}
	type Then struct {
		called  []mq.Type
		settled settlement
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			called := []mq.Type{}
			d := mq.NewDispatcher("test", mq.OrchestratorCommand, memory.New(), quietLogger())
			for _, typ := range []mq.Type{mq.TrainBuild, mq.StationSecretSync} {
				typ := typ
				if err := d.Register(typ, func(_ context.Context, e mq.Envelope) error {
					called = append(called, e.Type)
					if when.panics {
						panic("fake panic")
					}
					return when.handlerErr
				}); err != nil {
					t.Fatal(err)
				}
			}

			dl, s := delivery(t, when.body(t))
			d.Dispatch(context.Background(), dl)

			if !cmp.Equal(called, then.called) {
				t.Errorf("called: got %v, want %v", called, then.called)
			}
			if *s != then.settled {
				t.Errorf("settled: got %+v, want %+v", *s, then.settled)
			}
		}
	}

	t.Run("it routes to the handler of the type, and acks", theory(
		When{
			body: func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{TrainId: "T1"}) },
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Acked: true},
		},
	))

	t.Run("it requeues when handler fails transiently", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.StationSecretSync, trainRef{}) },
			handlerErr: xe.New(xe.TransientIntegration, "fake"),
		},
		Then{
			called:  []mq.Type{mq.StationSecretSync},
			settled: settlement{Nacked: true, Requeue: true},
		},
	))

	t.Run("it requeues when handler fails with unclassified error", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{}) },
			handlerErr: errors.New("fake"),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: true},
		},
	))

	t.Run("it does not requeue when handler rejects the message", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{}) },
			handlerErr: xe.New(xe.Validation, "fake"),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))

	t.Run("it does not requeue when guard of handler fails", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{}) },
			handlerErr: xe.Wrap(xe.New(xe.Precondition, "fake")),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))

	t.Run("it does not requeue when the state forbids the command", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{TrainId: "T1"}) },
			handlerErr: xe.Wrap(xe.New(xe.InvalidState, "fake: built already")),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))

	t.Run("it does not requeue when the addressed entity is missing", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{TrainId: "T9"}) },
			handlerErr: xe.New(xe.NotFound, "fake: T9"),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))

	t.Run("it requeues when handler fails with stream error", theory(
		When{
			body:       func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{}) },
			handlerErr: xe.New(xe.StreamError, "fake"),
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: true},
		},
	))

	t.Run("it recovers panic of handler and requeues", theory(
		When{
			body:   func(t *testing.T) []byte { return envelopeBody(t, mq.TrainBuild, trainRef{}) },
			panics: true,
		},
		Then{
			called:  []mq.Type{mq.TrainBuild},
			settled: settlement{Nacked: true, Requeue: true},
		},
	))

	t.Run("it rejects type without handler", theory(
		When{
			body: func(t *testing.T) []byte { return envelopeBody(t, mq.ResultServiceDownload, trainRef{}) },
		},
		Then{
			called:  []mq.Type{},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))

	t.Run("it rejects malformed message", theory(
		When{
			body: func(*testing.T) []byte { return []byte("{broken") },
		},
		Then{
			called:  []mq.Type{},
			settled: settlement{Nacked: true, Requeue: false},
		},
	))
}

func TestDispatcher_Start(t *testing.T) {
	t.Run("it consumes messages from broker, and redelivers requeued ones", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		broker := memory.New()
		defer broker.Close()

		mu := sync.Mutex{}
		attempts := map[string]int{}
		done := make(chan struct{})

		d := mq.NewDispatcher("test", mq.OrchestratorCommand, broker, quietLogger(), mq.TrainBuild)
		if err := d.Register(mq.TrainBuild, func(_ context.Context, e mq.Envelope) error {
			ref, err := mq.Decode[trainRef](e)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			attempts[ref.TrainId] += 1
			if attempts[ref.TrainId] < 2 {
				return xe.New(xe.TransientIntegration, "try again")
			}
			if len(attempts) == 2 && attempts["T1"] == 2 && attempts["T2"] == 2 {
				close(done)
			}
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		stopped := make(chan error, 1)
		go func() { stopped <- d.Start(ctx) }()

		for _, id := range []string{"T1", "T2"} {
			if err := mq.Send(ctx, broker, mq.OrchestratorCommand, mq.TrainBuild, trainRef{TrainId: id}); err != nil {
				t.Fatal(err)
			}
		}

		select {
		case <-done:
		case <-ctx.Done():
			t.Fatalf("timeout. attempts = %v", attempts)
		}

		if err := d.Start(ctx); !errors.Is(err, mq.ErrAlreadyStarted) {
			t.Errorf("second start: got %v", err)
		}

		cancel()
		if err := <-stopped; !errors.Is(err, context.Canceled) {
			t.Errorf("stopped with %v", err)
		}
	})

	t.Run("when the transport stops delivering, it fails", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		broker := memory.New()
		handled := make(chan struct{})
		d := mq.NewDispatcher("test", mq.OrchestratorCommand, broker, quietLogger(), mq.TrainBuild)
		if err := d.Register(mq.TrainBuild, func(context.Context, mq.Envelope) error {
			close(handled)
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		stopped := make(chan error, 1)
		go func() { stopped <- d.Start(ctx) }()

		if err := mq.Send(ctx, broker, mq.OrchestratorCommand, mq.TrainBuild, trainRef{TrainId: "T1"}); err != nil {
			t.Fatal(err)
		}
		select {
		case <-handled:
		case <-ctx.Done():
			t.Fatal("timeout: message is not dispatched")
		}
		broker.Close()

		select {
		case err := <-stopped:
			if !errors.Is(err, xe.ErrTransientIntegration) {
				t.Errorf("stopped with %v, want TransientIntegration", err)
			}
		case <-ctx.Done():
			t.Fatal("timeout: dispatcher keeps running after the broker is closed")
		}
	})
}
