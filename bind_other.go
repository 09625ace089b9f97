//go:build !(darwin || freebsd || linux || windows)

package dylink

import "runtime"

func registerFunc(any, uintptr) {
	panic("function binding is not supported on " + runtime.GOOS)
}
