package dylink

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xyproto/env/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/dylink/errors"
)

// Resolver locates the address of a native symbol under a link strategy.
type Resolver interface {
	Resolve(symbol string, s Strategy) (uintptr, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(symbol string, s Strategy) (uintptr, error)

// Resolve calls f(symbol, s).
func (f ResolverFunc) Resolve(symbol string, s Strategy) (uintptr, error) {
	return f(symbol, s)
}

var (
	defaultResolver Resolver
	defaultMu       sync.RWMutex
)

// DefaultResolver returns the process-wide resolver used by cells that were
// not given one explicitly. It is a native Loader unless replaced.
func DefaultResolver() Resolver {
	defaultMu.RLock()
	r := defaultResolver
	defaultMu.RUnlock()
	if r != nil {
		return r
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultResolver == nil {
		defaultResolver = NewLoader()
	}
	return defaultResolver
}

// SetDefaultResolver replaces the process-wide resolver.
// Cells that already resolved keep their function.
func SetDefaultResolver(r Resolver) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResolver = r
}

// Environment variables overriding the well-known library search.
const (
	EnvVulkanLibrary = "DYLINK_VULKAN_LIBRARY"
	EnvOpenGLLibrary = "DYLINK_OPENGL_LIBRARY"
)

// platform is the OS layer the Loader drives.
type platform interface {
	open(name string) (uintptr, error)
	symbol(lib uintptr, name string) (uintptr, error)
	// getProc calls a native loader entry point shaped `void *(*)(handle, const char *)`.
	getProc(fn, handle uintptr, name string) uintptr
	// getProc1 calls a native loader entry point shaped `void *(*)(const char *)`.
	getProc1(fn uintptr, name string) uintptr
	candidates(name string) []string
	vulkanLibraries() []string
	openGLLibraries() []string
	glProcAddress() []string
}

// Loader resolves symbols from native libraries.
// Opened libraries are cached for the life of the process; resolved function
// pointers must stay valid, so libraries are never closed.
//
// Loader is thread-safe.
type Loader struct {
	sys       platform
	libs      map[string]uintptr
	instances *HandleTable
	devices   *HandleTable
	vulkanLib string
	openGLLib string
	mu        sync.RWMutex
}

// NewLoader creates a loader over the host's dynamic linker, tracking the
// process-wide Instances and Devices tables.
func NewLoader() *Loader {
	return newLoader(nativePlatform{}, Instances, Devices)
}

func newLoader(sys platform, instances, devices *HandleTable) *Loader {
	env.Load()
	return &Loader{
		sys:       sys,
		libs:      make(map[string]uintptr),
		instances: instances,
		devices:   devices,
		vulkanLib: env.Str(EnvVulkanLibrary),
		openGLLib: env.Str(EnvOpenGLLibrary),
	}
}

// Resolve implements Resolver.
func (l *Loader) Resolve(symbol string, s Strategy) (uintptr, error) {
	if !s.IsValid() {
		return 0, errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("invalid strategy for %q", symbol))
	}

	switch s.Kind() {
	case KindWellKnown:
		if s.Tag() == Vulkan {
			return l.resolveVulkan(symbol)
		}
		return l.resolveOpenGL(symbol)
	default:
		return l.resolveNamed(symbol, s.libs)
	}
}

// Library opens (or returns the cached handle of) a library by name.
// Bare names are decorated with the platform prefix and suffix when the
// name as given cannot be opened.
func (l *Loader) Library(name string) (uintptr, error) {
	l.mu.RLock()
	h, ok := l.libs[name]
	l.mu.RUnlock()
	if ok {
		return h, nil
	}

	var errs error
	for _, candidate := range l.sys.candidates(name) {
		h, err := l.sys.open(candidate)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		Logger().Debug("opened library",
			zap.String("library", name),
			zap.String("path", candidate))

		l.mu.Lock()
		if prev, ok := l.libs[name]; ok {
			h = prev
		} else {
			l.libs[name] = h
		}
		l.mu.Unlock()
		return h, nil
	}

	return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Detail("library %q could not be opened", name).
		Value(name).
		Cause(errs).
		Build()
}

func (l *Loader) resolveNamed(symbol string, libs []string) (uintptr, error) {
	var errs error
	for _, name := range libs {
		lib, err := l.Library(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		addr, err := l.sys.symbol(lib, symbol)
		if err == nil && addr != 0 {
			return addr, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: symbol is nil", name)
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
	}

	return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Symbol(symbol).
		Detail("symbol not found in any of [%s]", strings.Join(libs, ", ")).
		Cause(errs).
		Build()
}

func (l *Loader) firstLibrary(override string, defaults []string) (string, uintptr, error) {
	names := defaults
	if override != "" {
		names = append([]string{override}, defaults...)
	}

	var errs error
	for _, name := range names {
		lib, err := l.Library(name)
		if err == nil {
			return name, lib, nil
		}
		errs = multierr.Append(errs, err)
	}
	return "", 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Detail("no library found among [%s]", strings.Join(names, ", ")).
		Cause(errs).
		Build()
}
