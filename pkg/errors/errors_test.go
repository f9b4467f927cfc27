package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/opst/pht-central/pkg/errors"
)

type MyErr struct{}

func (MyErr) Error() string {
	return "error type for test"
}

func createError(message string) error {
	return xe.New(xe.NotFound, message)
}

func TestNewError(t *testing.T) {
	t.Run("it knows location where it is created.", func(t *testing.T) {
		testee := createError("test error")

		_, thisFile, _, _ := runtime.Caller(0)

		trace := xe.Trace(testee)
		if len(trace) != 1 {
			t.Fatalf("trace: %v", trace)
		}
		if !strings.HasSuffix(trace[0].Func, "createError") {
			t.Errorf("it does not know function name: %s", trace[0])
		}
		if trace[0].File != thisFile {
			t.Errorf("it does not know file (%s): %s", thisFile, trace[0])
		}
		if got := testee.Error(); got != "not-found: test error" {
			t.Errorf("message: %s", got)
		}
	})

	t.Run("trace lists wrapping locations, outermost first", func(t *testing.T) {
		inner := createError("inner")
		outer := xe.WrapWithNote("outer", fmt.Errorf("middle: %w", inner))

		trace := xe.Trace(outer)
		if len(trace) != 2 {
			t.Fatalf("trace: %v", trace)
		}
		if !strings.Contains(trace[0].Func, "TestNewError") {
			t.Errorf("outermost: %s", trace[0])
		}
		if !strings.HasSuffix(trace[1].Func, "createError") {
			t.Errorf("innermost: %s", trace[1])
		}
		if got := outer.Error(); got != "outer: middle: not-found: inner" {
			t.Errorf("message: %s", got)
		}
	})

	t.Run("it supports errors protocol", func(t *testing.T) {
		rootError := MyErr{}

		err := xe.Wrap(
			fmt.Errorf(
				"%w",
				fmt.Errorf("%w", rootError),
			),
		)

		if !errors.Is(err, rootError) {
			t.Error("it does not support unwrapping.")
		}
	})

	t.Run("wrapping nil gives nil", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := xe.Classify(xe.StreamError, "note", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestKinds(t *testing.T) {
	type When struct {
		err error
	}
	type Then struct {
		kind     xe.Kind
		sentinel error
		cause    error
	}

	cause := MyErr{}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			got, ok := xe.KindOf(when.err)
			if !ok || got != then.kind {
				t.Errorf("kind: got (%s, %v), want %s", got, ok, then.kind)
			}
			if !errors.Is(when.err, then.sentinel) {
				t.Errorf("errors.Is(%v, %v) is false", when.err, then.sentinel)
			}
			if then.cause != nil && !errors.Is(when.err, then.cause) {
				t.Errorf("cause %v is lost in %v", then.cause, when.err)
			}
			for _, other := range []error{
				xe.ErrValidation, xe.ErrPrecondition, xe.ErrNotFound,
				xe.ErrInvalidState, xe.ErrTransientIntegration, xe.ErrStreamError,
			} {
				if other == then.sentinel {
					continue
				}
				if errors.Is(when.err, other) {
					t.Errorf("%v should not be %v", when.err, other)
				}
			}
		}
	}

	t.Run("New", theory(
		When{err: xe.New(xe.Precondition, "2 stations have not approved")},
		Then{kind: xe.Precondition, sentinel: xe.ErrPrecondition},
	))
	t.Run("Errorf", theory(
		When{err: xe.Errorf(xe.InvalidState, "train %s is already built", "T1")},
		Then{kind: xe.InvalidState, sentinel: xe.ErrInvalidState},
	))
	t.Run("Classify", theory(
		When{err: xe.Classify(xe.TransientIntegration, "secret store", cause)},
		Then{kind: xe.TransientIntegration, sentinel: xe.ErrTransientIntegration, cause: cause},
	))
	t.Run("Wrap keeps the kind", theory(
		When{err: xe.Wrap(fmt.Errorf("outer: %w", xe.Classify(xe.StreamError, "path /out/b", cause)))},
		Then{kind: xe.StreamError, sentinel: xe.ErrStreamError, cause: cause},
	))

	t.Run("plain error has no kind", func(t *testing.T) {
		if k, ok := xe.KindOf(errors.New("plain")); ok {
			t.Errorf("unexpected kind: %s", k)
		}
	})
}
