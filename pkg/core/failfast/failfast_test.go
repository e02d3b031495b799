package failfast

import (
	"errors"
	"testing"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestErr(t *testing.T) {
	Err(nil) // must not panic
	expectPanic(t, "Err(non-nil)", func() { Err(errors.New("bad wiring")) })
}

func TestIf(t *testing.T) {
	If(true, "unused")
	expectPanic(t, "If(false)", func() { If(false, "id %d out of range", 7) })
}

func TestNotNil(t *testing.T) {
	NotNil("value", "v")
	NotNil(&struct{}{}, "ptr")

	expectPanic(t, "NotNil(nil)", func() { NotNil(nil, "v") })

	var p *int
	expectPanic(t, "NotNil(typed nil)", func() { NotNil(p, "p") })

	var fn func()
	expectPanic(t, "NotNil(nil func)", func() { NotNil(fn, "fn") })
}
