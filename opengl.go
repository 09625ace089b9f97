package dylink

import (
	"github.com/wippyai/dylink/errors"
)

// resolveOpenGL looks the symbol up in the GL library exports, then asks the
// platform's get-proc-address entry point for extension functions.
func (l *Loader) resolveOpenGL(symbol string) (uintptr, error) {
	libName, lib, err := l.firstLibrary(l.openGLLib, l.sys.openGLLibraries())
	if err != nil {
		return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Symbol(symbol).
			Detail("opengl library unavailable").
			Cause(err).
			Build()
	}

	if addr, err := l.sys.symbol(lib, symbol); err == nil && addr != 0 {
		return addr, nil
	}

	for _, name := range l.sys.glProcAddress() {
		gpa, err := l.sys.symbol(lib, name)
		if err != nil || gpa == 0 {
			continue
		}
		if addr := l.sys.getProc1(gpa, symbol); validGLProc(addr) {
			return addr, nil
		}
	}

	return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Symbol(symbol).
		Detail("not exported by %s", libName).
		Build()
}

// wglGetProcAddress signals failure with small sentinel values as well as NULL.
func validGLProc(addr uintptr) bool {
	return addr > 3 && addr != ^uintptr(0)
}
