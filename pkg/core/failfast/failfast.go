// Package failfast aborts on programming errors. The harness distinguishes
// recoverable failures (reported to callers as failure responses) from
// protocol violations and wiring mistakes, which panic here with a stack so
// the defect is caught at its source rather than papered over.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics when err is non-nil, attaching the stack of the violation site.
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with the formatted message when the condition is false.
func If(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+format, args...))
	}
}

// NotNil panics when v is nil, including typed nil pointers and nil funcs.
func NotNil(v any, name string) {
	if v == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Interface, reflect.Map, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil", name))
		}
	}
}
