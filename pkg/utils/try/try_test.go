package try_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/opst/pht-central/pkg/utils/try"
)

type fakeFataler struct {
	helped bool
	fatals []any
}

func (f *fakeFataler) Helper() {
	f.helped = true
}

func (f *fakeFataler) Fatal(args ...any) {
	f.fatals = append(f.fatals, args...)
}

func TestOrFatal(t *testing.T) {
	t.Run("without error, it returns the value", func(t *testing.T) {
		ftl := &fakeFataler{}
		if got := try.To(42, nil).OrFatal(ftl); got != 42 {
			t.Errorf("value: %d", got)
		}
		if len(ftl.fatals) != 0 {
			t.Errorf("Fatal is called: %v", ftl.fatals)
		}
	})

	t.Run("with error, it calls Fatal", func(t *testing.T) {
		ftl := &fakeFataler{}
		err := errors.New("fake")
		try.To(42, err).OrFatal(ftl)
		if !ftl.helped {
			t.Error("Helper is not called")
		}
		if len(ftl.fatals) != 1 || ftl.fatals[0] != err {
			t.Errorf("Fatal: %v", ftl.fatals)
		}
	})
}

func TestOrDefault(t *testing.T) {
	if got := try.To("value", nil).OrDefault("default"); got != "value" {
		t.Errorf("ok: %s", got)
	}
	if got := try.To("value", fmt.Errorf("fake")).OrDefault("default"); got != "default" {
		t.Errorf("ng: %s", got)
	}
}

func TestGet(t *testing.T) {
	err := errors.New("fake")
	if v, e := try.To(1, err).Get(); v != 1 || e != err {
		t.Errorf("(%d, %v)", v, e)
	}
}
