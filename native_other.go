//go:build !(darwin || freebsd || linux || windows)

package dylink

import (
	"runtime"

	"github.com/wippyai/dylink/errors"
)

type nativePlatform struct{}

func unsupportedOS() error {
	return errors.Unsupported(errors.PhaseResolve, errors.Span{}, "dynamic loading is not supported on "+runtime.GOOS)
}

func (nativePlatform) open(string) (uintptr, error)             { return 0, unsupportedOS() }
func (nativePlatform) symbol(uintptr, string) (uintptr, error)   { return 0, unsupportedOS() }
func (nativePlatform) getProc(uintptr, uintptr, string) uintptr { return 0 }
func (nativePlatform) getProc1(uintptr, string) uintptr         { return 0 }
func (nativePlatform) candidates(name string) []string          { return []string{name} }
func (nativePlatform) vulkanLibraries() []string                { return nil }
func (nativePlatform) openGLLibraries() []string                { return nil }
func (nativePlatform) glProcAddress() []string                  { return nil }
