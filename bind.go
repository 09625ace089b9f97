package dylink

import (
	"fmt"
	"reflect"

	"github.com/wippyai/dylink/errors"
)

// Binder turns a resolved native address into a callable Go function of type F.
type Binder[F any] func(addr uintptr, abi ABI, fn *F) error

// BindNative binds addr to fn using the platform C calling convention.
func BindNative[F any](addr uintptr, abi ABI, fn *F) (err error) {
	if addr == 0 {
		return errors.InvalidInput(errors.PhaseResolve, "cannot bind a nil function address")
	}
	if !abi.Supported() {
		return errors.Unsupported(errors.PhaseResolve, errors.Span{}, fmt.Sprintf("ABI %q cannot be bound", abi))
	}
	if t := reflect.TypeFor[F](); t.Kind() != reflect.Func {
		return errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("%s is not a function type", t))
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseResolve, errors.KindUnsupported).
				Detail("bind %s: %v", reflect.TypeFor[F](), r).
				Build()
		}
	}()
	registerFunc(fn, addr)
	return nil
}
