package dylink

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/dylink/errors"
)

type procFn func(handle uintptr, name string) uintptr

// fakePlatform serves libraries from in-memory symbol tables. Loader entry
// points are modelled by dispatch functions keyed by their address.
type fakePlatform struct {
	libs     map[string]map[string]uintptr
	procs    map[uintptr]procFn
	handles  []string
	opened   []string
	vulkan   []string
	openGL   []string
	glProcs  []string
	decorate bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		libs:  make(map[string]map[string]uintptr),
		procs: make(map[uintptr]procFn),
	}
}

func (p *fakePlatform) open(name string) (uintptr, error) {
	p.opened = append(p.opened, name)
	if _, ok := p.libs[name]; !ok {
		return 0, fmt.Errorf("%s: cannot open shared object file", name)
	}
	if i := slices.Index(p.handles, name); i >= 0 {
		return uintptr(i + 1), nil
	}
	p.handles = append(p.handles, name)
	return uintptr(len(p.handles)), nil
}

func (p *fakePlatform) symbol(lib uintptr, name string) (uintptr, error) {
	syms := p.libs[p.handles[lib-1]]
	if addr, ok := syms[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("undefined symbol: %s", name)
}

func (p *fakePlatform) getProc(fn, handle uintptr, name string) uintptr {
	if proc, ok := p.procs[fn]; ok {
		return proc(handle, name)
	}
	return 0
}

func (p *fakePlatform) getProc1(fn uintptr, name string) uintptr {
	return p.getProc(fn, 0, name)
}

func (p *fakePlatform) candidates(name string) []string {
	if p.decorate {
		return []string{name, "lib" + name + ".so"}
	}
	return []string{name}
}

func (p *fakePlatform) vulkanLibraries() []string { return p.vulkan }
func (p *fakePlatform) openGLLibraries() []string { return p.openGL }
func (p *fakePlatform) glProcAddress() []string   { return p.glProcs }

func newTestLoader(sys *fakePlatform) *Loader {
	return newLoader(sys, NewHandleTable("instance"), NewHandleTable("device"))
}

func TestLoader_NamedAnyOrder(t *testing.T) {
	sys := newFakePlatform()
	sys.libs["liba.so"] = map[string]uintptr{}
	sys.libs["libb.so"] = map[string]uintptr{"foo": 0x200}
	sys.libs["libc.so"] = map[string]uintptr{"foo": 0x300}
	l := newTestLoader(sys)

	addr, err := l.Resolve("foo", NamedAny("missing.so", "liba.so", "libb.so", "libc.so"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr != 0x200 {
		t.Errorf("addr = %#x, want 0x200", addr)
	}
	want := []string{"missing.so", "liba.so", "libb.so"}
	if !slices.Equal(sys.opened, want) {
		t.Errorf("opened = %v, want %v", sys.opened, want)
	}
}

func TestLoader_NamedMatchesSingleAny(t *testing.T) {
	sys := newFakePlatform()
	sys.libs["libfoo.so"] = map[string]uintptr{"foo": 0x10}
	l := newTestLoader(sys)

	a, errA := l.Resolve("foo", Named("libfoo.so"))
	b, errB := l.Resolve("foo", NamedAny("libfoo.so"))
	if errA != nil || errB != nil || a != b {
		t.Errorf("Named = %#x, %v; NamedAny = %#x, %v", a, errA, b, errB)
	}
}

func TestLoader_NotFoundListsCandidates(t *testing.T) {
	sys := newFakePlatform()
	sys.libs["liba.so"] = map[string]uintptr{}
	l := newTestLoader(sys)

	_, err := l.Resolve("foo", NamedAny("liba.so", "libb.so"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindNotFound}) {
		t.Errorf("err = %v, want resolve/not_found", err)
	}
	for _, s := range []string{"foo", "liba.so", "libb.so"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("error %q does not mention %q", err.Error(), s)
		}
	}
}

func TestLoader_LibraryCacheAndDecoration(t *testing.T) {
	sys := newFakePlatform()
	sys.decorate = true
	sys.libs["libm.so"] = map[string]uintptr{"cos": 0x42}
	l := newTestLoader(sys)

	for range 3 {
		addr, err := l.Resolve("cos", Named("m"))
		if err != nil || addr != 0x42 {
			t.Fatalf("Resolve = %#x, %v", addr, err)
		}
	}
	want := []string{"m", "libm.so"}
	if !slices.Equal(sys.opened, want) {
		t.Errorf("opened = %v, want %v", sys.opened, want)
	}
}

func TestLoader_InvalidStrategy(t *testing.T) {
	l := newTestLoader(newFakePlatform())
	_, err := l.Resolve("foo", Strategy{})
	var de *errors.Error
	if !stderrors.As(err, &de) || de.Kind != errors.KindInvalidInput {
		t.Errorf("err = %v, want invalid_input", err)
	}
}

const (
	gipaAddr     = 0x1000
	gdpaAddr     = 0x2000
	testInstance = 0x77
	testDevice   = 0x88
)

func vulkanPlatform() *fakePlatform {
	sys := newFakePlatform()
	sys.vulkan = []string{"libvulkan.so.1"}
	sys.libs["libvulkan.so.1"] = map[string]uintptr{
		vkGetInstanceProcAddr: gipaAddr,
		"vkLoaderExport":      0x44,
	}
	sys.procs[gipaAddr] = func(handle uintptr, name string) uintptr {
		switch {
		case handle == 0 && name == "vkCreateInstance":
			return 0x11
		case handle == testInstance && name == "vkCreateSwapchainKHR":
			return 0x22
		case handle == testInstance && name == vkGetDeviceProcAddr:
			return gdpaAddr
		}
		return 0
	}
	sys.procs[gdpaAddr] = func(handle uintptr, name string) uintptr {
		if handle == testDevice && name == "vkQueueSubmit" {
			return 0x33
		}
		return 0
	}
	return sys
}

func TestLoader_Vulkan(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		instances []uintptr
		devices   []uintptr
		want      uintptr
	}{
		{"proc addr itself", vkGetInstanceProcAddr, nil, nil, gipaAddr},
		{"global command", "vkCreateInstance", nil, nil, 0x11},
		{"instance command", "vkCreateSwapchainKHR", []uintptr{0x5, testInstance}, nil, 0x22},
		{"instance command untracked", "vkCreateSwapchainKHR", nil, nil, 0},
		{"device command", "vkQueueSubmit", []uintptr{testInstance}, []uintptr{testDevice}, 0x33},
		{"device command untracked", "vkQueueSubmit", []uintptr{testInstance}, nil, 0},
		{"loader export", "vkLoaderExport", nil, nil, 0x44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(vulkanPlatform())
			for _, h := range tt.instances {
				l.instances.Insert(h)
			}
			for _, h := range tt.devices {
				l.devices.Insert(h)
			}

			addr, err := l.Resolve(tt.symbol, WellKnown(Vulkan))
			if tt.want == 0 {
				if err == nil {
					t.Fatalf("Resolve = %#x, want error", addr)
				}
				if !strings.Contains(err.Error(), tt.symbol) {
					t.Errorf("error %q does not name the symbol", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if addr != tt.want {
				t.Errorf("addr = %#x, want %#x", addr, tt.want)
			}
		})
	}
}

func TestLoader_VulkanOverride(t *testing.T) {
	sys := vulkanPlatform()
	sys.libs["custom-vulkan.so"] = map[string]uintptr{vkGetInstanceProcAddr: gipaAddr}
	l := newTestLoader(sys)
	l.vulkanLib = "custom-vulkan.so"

	if _, err := l.Resolve("vkCreateInstance", WellKnown(Vulkan)); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sys.opened[0] != "custom-vulkan.so" {
		t.Errorf("opened = %v, want override first", sys.opened)
	}
}

func TestLoader_EnvOverrideAfterEarlierRead(t *testing.T) {
	t.Setenv(EnvVulkanLibrary, "")
	t.Setenv(EnvOpenGLLibrary, "")
	if l := newTestLoader(vulkanPlatform()); l.vulkanLib != "" {
		t.Fatalf("vulkanLib = %q, want empty", l.vulkanLib)
	}

	t.Setenv(EnvVulkanLibrary, "custom-vulkan.so")
	t.Setenv(EnvOpenGLLibrary, "custom-gl.so")
	sys := vulkanPlatform()
	sys.libs["custom-vulkan.so"] = map[string]uintptr{vkGetInstanceProcAddr: gipaAddr}
	l := newTestLoader(sys)
	if l.vulkanLib != "custom-vulkan.so" || l.openGLLib != "custom-gl.so" {
		t.Fatalf("overrides = %q, %q", l.vulkanLib, l.openGLLib)
	}
	if _, err := l.Resolve("vkCreateInstance", WellKnown(Vulkan)); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sys.opened[0] != "custom-vulkan.so" {
		t.Errorf("opened = %v, want override first", sys.opened)
	}
}

func TestLoader_VulkanUnavailable(t *testing.T) {
	sys := newFakePlatform()
	sys.vulkan = []string{"libvulkan.so.1"}
	l := newTestLoader(sys)

	_, err := l.Resolve("vkCreateInstance", WellKnown(Vulkan))
	if err == nil || !strings.Contains(err.Error(), "vulkan loader unavailable") {
		t.Errorf("err = %v", err)
	}
}

func TestLoader_OpenGL(t *testing.T) {
	sys := newFakePlatform()
	sys.openGL = []string{"libGL.so.1"}
	sys.glProcs = []string{"glXGetProcAddressARB"}
	sys.libs["libGL.so.1"] = map[string]uintptr{
		"glClear":              0x40,
		"glXGetProcAddressARB": 0x3000,
	}
	sys.procs[0x3000] = func(_ uintptr, name string) uintptr {
		switch name {
		case "glGenBuffers":
			return 0x50
		case "glSentinel":
			return 2
		}
		return 0
	}
	l := newTestLoader(sys)

	tests := []struct {
		symbol string
		want   uintptr
	}{
		{"glClear", 0x40},
		{"glGenBuffers", 0x50},
		{"glSentinel", 0},
		{"glMissing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			addr, err := l.Resolve(tt.symbol, WellKnown(OpenGL))
			if tt.want == 0 {
				if err == nil {
					t.Errorf("Resolve = %#x, want error", addr)
				}
				return
			}
			if err != nil || addr != tt.want {
				t.Errorf("Resolve = %#x, %v, want %#x", addr, err, tt.want)
			}
		})
	}
}

func TestValidGLProc(t *testing.T) {
	tests := []struct {
		addr uintptr
		want bool
	}{
		{0, false},
		{1, false},
		{3, false},
		{^uintptr(0), false},
		{0x1000, true},
	}
	for _, tt := range tests {
		if got := validGLProc(tt.addr); got != tt.want {
			t.Errorf("validGLProc(%#x) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestDefaultResolver(t *testing.T) {
	prev := DefaultResolver()
	defer SetDefaultResolver(prev)

	r := ResolverFunc(func(symbol string, _ Strategy) (uintptr, error) {
		return uintptr(len(symbol)), nil
	})
	SetDefaultResolver(r)

	cell := NewLazyFn[addFn]("abcd", ABIC, Named("x")).WithBinder(addBinder)
	if got := cell.Get()(0); got != 4 {
		t.Errorf("Get()(0) = %d, want 4", got)
	}
}
