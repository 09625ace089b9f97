package dylink

import (
	"testing"
)

func TestStrategy_String(t *testing.T) {
	tests := []struct {
		name string
		s    Strategy
		want string
	}{
		{"vulkan", WellKnown(Vulkan), "vulkan"},
		{"opengl", WellKnown(OpenGL), "opengl"},
		{"named", Named("libfoo.so"), `name = "libfoo.so"`},
		{"any", NamedAny("a.so", "b.dll"), `any(name = "a.so", name = "b.dll")`},
		{"zero", Strategy{}, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStrategy_IsValid(t *testing.T) {
	tests := []struct {
		name string
		s    Strategy
		want bool
	}{
		{"vulkan", WellKnown(Vulkan), true},
		{"opengl", WellKnown(OpenGL), true},
		{"no tag", WellKnown(TagNone), false},
		{"named", Named("x"), true},
		{"empty name", Named(""), true},
		{"any", NamedAny("a"), true},
		{"zero", Strategy{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrategy_Libraries(t *testing.T) {
	s := NamedAny("a", "b")
	libs := s.Libraries()
	libs[0] = "mutated"
	if s.Libraries()[0] != "a" {
		t.Error("Libraries should return a copy")
	}

	if !Named("a").Equal(Strategy{kind: KindNamed, libs: []string{"a"}}) {
		t.Error("Equal should compare payload")
	}
	if Named("a").Equal(NamedAny("a")) {
		t.Error("Named and NamedAny are distinct variants")
	}
	if len(WellKnown(Vulkan).Libraries()) != 0 {
		t.Error("well-known strategy has no libraries")
	}
}

func TestStrategy_Is(t *testing.T) {
	if !WellKnown(Vulkan).Is(Vulkan) {
		t.Error("WellKnown(Vulkan).Is(Vulkan) = false")
	}
	if WellKnown(OpenGL).Is(Vulkan) {
		t.Error("WellKnown(OpenGL).Is(Vulkan) = true")
	}
	if Named("vulkan").Is(Vulkan) {
		t.Error("Named strategy must not match a tag")
	}
}

func TestNamedAny_Empty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NamedAny() should panic")
		}
	}()
	NamedAny()
}

func TestTagFromKeyword(t *testing.T) {
	for _, tag := range []Tag{Vulkan, OpenGL} {
		got, ok := TagFromKeyword(tag.Keyword())
		if !ok || got != tag {
			t.Errorf("TagFromKeyword(%q) = %v, %v", tag.Keyword(), got, ok)
		}
	}
	if _, ok := TagFromKeyword("metal"); ok {
		t.Error("unknown keyword accepted")
	}
}

func TestABI_Supported(t *testing.T) {
	for _, abi := range []ABI{ABIC, ABISystem, ABICdecl} {
		if !abi.Supported() {
			t.Errorf("%q should be supported", abi)
		}
	}
	if ABI("fastcall").Supported() {
		t.Error("fastcall should not be supported")
	}
}
