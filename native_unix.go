//go:build darwin || freebsd || linux

package dylink

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ebitengine/purego"
)

type nativePlatform struct{}

func (nativePlatform) open(name string) (uintptr, error) {
	return purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func (nativePlatform) symbol(lib uintptr, name string) (uintptr, error) {
	return purego.Dlsym(lib, name)
}

func (nativePlatform) candidates(name string) []string {
	if strings.ContainsRune(name, '/') || hasLibraryExt(name) {
		return []string{name}
	}
	ext := ".so"
	if runtime.GOOS == "darwin" {
		ext = ".dylib"
	}
	return []string{name, "lib" + name + ext, name + ext}
}

func hasLibraryExt(name string) bool {
	switch filepath.Ext(name) {
	case ".so", ".dylib", ".dll":
		return true
	}
	return strings.Contains(name, ".so.")
}

func (nativePlatform) vulkanLibraries() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libvulkan.1.dylib", "libvulkan.dylib", "libMoltenVK.dylib"}
	}
	return []string{"libvulkan.so.1", "libvulkan.so"}
}

func (nativePlatform) openGLLibraries() []string {
	if runtime.GOOS == "darwin" {
		return []string{"/System/Library/Frameworks/OpenGL.framework/OpenGL"}
	}
	return []string{"libGL.so.1", "libGL.so"}
}

func (nativePlatform) glProcAddress() []string {
	if runtime.GOOS == "darwin" {
		return nil
	}
	return []string{"glXGetProcAddressARB", "glXGetProcAddress"}
}
