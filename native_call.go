//go:build darwin || freebsd || linux || windows

package dylink

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

func (nativePlatform) getProc(fn, handle uintptr, name string) uintptr {
	cname := append([]byte(name), 0)
	var pin runtime.Pinner
	pin.Pin(&cname[0])
	defer pin.Unpin()

	r1, _, _ := purego.SyscallN(fn, handle, uintptrOf(&cname[0]))
	return r1
}

func (nativePlatform) getProc1(fn uintptr, name string) uintptr {
	cname := append([]byte(name), 0)
	var pin runtime.Pinner
	pin.Pin(&cname[0])
	defer pin.Unpin()

	r1, _, _ := purego.SyscallN(fn, uintptrOf(&cname[0]))
	return r1
}

func uintptrOf(p *byte) uintptr {
	return uintptr(unsafe.Pointer(p))
}
