//go:build darwin || freebsd || linux || windows

package dylink

import "github.com/ebitengine/purego"

func registerFunc(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
