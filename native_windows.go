//go:build windows

package dylink

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

type nativePlatform struct{}

func (nativePlatform) open(name string) (uintptr, error) {
	h, err := windows.LoadLibrary(name)
	return uintptr(h), err
}

func (nativePlatform) symbol(lib uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(lib), name)
}

func (nativePlatform) candidates(name string) []string {
	if strings.ContainsAny(name, `\/`) || strings.EqualFold(filepath.Ext(name), ".dll") {
		return []string{name}
	}
	return []string{name + ".dll", name}
}

func (nativePlatform) vulkanLibraries() []string {
	return []string{"vulkan-1.dll"}
}

func (nativePlatform) openGLLibraries() []string {
	return []string{"opengl32.dll"}
}

func (nativePlatform) glProcAddress() []string {
	return []string{"wglGetProcAddress"}
}
