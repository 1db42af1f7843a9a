// Package assert guards against programmer errors like missing dependencies,
// it must never be used to validate remote data.
package assert

import (
	"fmt"
	"reflect"
	"time"
)

// NotNil panics if value is nil, a typed nil pointer stored in an interface counts as nil.
func NotNil(value any, name string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", name))
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if v.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", name))
		}
	}
}

func NotEmptyStr(str, name string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", name))
	}
}

func NotNegative(d time.Duration, name string) {
	if d < 0 {
		panic(fmt.Sprintf("expected %s to be >= 0, got %s", name, d))
	}
}
