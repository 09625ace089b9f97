package decl

import (
	"go/token"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
)

var testOptions = Options{RuntimeName: "dylink", RuntimePath: "github.com/wippyai/dylink"}

func parse(t *testing.T, src string) (*Block, errors.List) {
	t.Helper()
	return Parse(token.NewFileSet(), "vk.go", []byte(src), testOptions)
}

func input(link, body string) string {
	return "//go:build dylink\n\n" + link + "\n//dylink:extern \"system\"\npackage vk\n\n" + body
}

func funcNames(b *Block) []string {
	var names []string
	for _, f := range b.Funcs {
		names = append(names, f.Name)
	}
	return names
}

func TestParse_Block(t *testing.T) {
	src := input("//dylink:link vulkan", `import "unsafe"

type Instance uintptr

// vkCreateInstance creates an instance.
func vkCreateInstance(pCreateInfo unsafe.Pointer, pAllocator unsafe.Pointer, pInstance *Instance) int32

//dylink:symbol vkDestroyInstance
func DestroyInstance(instance Instance, _ unsafe.Pointer)
`)

	b, diags := parse(t, src)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags.Err())
	}
	if b.Package != "vk" {
		t.Errorf("Package = %q, want vk", b.Package)
	}
	if !b.Strategy.Equal(dylink.WellKnown(dylink.Vulkan)) {
		t.Errorf("Strategy = %v, want vulkan", b.Strategy)
	}
	if b.ABI != dylink.ABISystem {
		t.Errorf("ABI = %q, want system", b.ABI)
	}
	if len(b.Imports) != 1 || b.Imports[0].Path != "unsafe" {
		t.Errorf("Imports = %+v", b.Imports)
	}
	if len(b.Decls) != 1 || b.Decls[0].Text != "type Instance uintptr" {
		t.Errorf("Decls = %+v", b.Decls)
	}
	if len(b.Warnings) != 0 {
		t.Errorf("Warnings = %v", b.Warnings.Err())
	}

	if len(b.Funcs) != 2 {
		t.Fatalf("got %d functions, want 2", len(b.Funcs))
	}

	create := b.Funcs[0]
	if create.Name != "vkCreateInstance" || create.Symbol != "vkCreateInstance" {
		t.Errorf("create = %s/%s", create.Name, create.Symbol)
	}
	if got := create.ParamList(); got != "pCreateInfo unsafe.Pointer, pAllocator unsafe.Pointer, pInstance *Instance" {
		t.Errorf("ParamList() = %q", got)
	}
	if create.Result != "int32" {
		t.Errorf("Result = %q, want int32", create.Result)
	}
	if !slices.Equal(create.Attrs, []string{"// vkCreateInstance creates an instance."}) {
		t.Errorf("Attrs = %q", create.Attrs)
	}
	if create.Visibility.String() != "unexported" {
		t.Errorf("Visibility = %v", create.Visibility)
	}
	if create.ABI != dylink.ABISystem {
		t.Errorf("ABI = %q", create.ABI)
	}
	if create.Pos.Line != 12 {
		t.Errorf("Pos.Line = %d, want 12", create.Pos.Line)
	}

	destroy := b.Funcs[1]
	if destroy.Name != "DestroyInstance" || destroy.Symbol != "vkDestroyInstance" {
		t.Errorf("destroy = %s/%s", destroy.Name, destroy.Symbol)
	}
	if destroy.Visibility.String() != "exported" {
		t.Errorf("Visibility = %v", destroy.Visibility)
	}
	if got := destroy.Args(); got != "instance, p1" {
		t.Errorf("Args() = %q, want \"instance, p1\"", got)
	}
	if len(destroy.Attrs) != 0 {
		t.Errorf("symbol directive leaked into Attrs: %q", destroy.Attrs)
	}
	if !slices.Equal(destroy.Qualifiers, []string{"unsafe"}) {
		t.Errorf("Qualifiers = %v", destroy.Qualifiers)
	}
}

func TestParse_ParameterRenaming(t *testing.T) {
	tests := []struct {
		name  string
		decl  string
		names []string
		types []string
	}{
		{"blank first", "func g(_ int32, x float32)", []string{"p0", "x"}, []string{"int32", "float32"}},
		{"unnamed", "func g(int32, float32)", []string{"p0", "p1"}, []string{"int32", "float32"}},
		{"grouped", "func g(a, _, c int8)", []string{"a", "p1", "c"}, []string{"int8", "int8", "int8"}},
		{"explicit pN", "func g(p1 int32, _ int32)", []string{"p1", "p1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, diags := parse(t, input(`//dylink:link name = "libg.so"`, tt.decl+"\n"))
			if b == nil {
				t.Fatalf("block rejected: %v", diags.Err())
			}
			if tt.types == nil {
				if len(diags) != 1 || !strings.Contains(diags[0].Detail, "collides with the name generated") {
					t.Fatalf("diags = %v", diags.Err())
				}
				return
			}
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags.Err())
			}
			params := b.Funcs[0].Params
			if len(params) != len(tt.names) {
				t.Fatalf("got %d params, want %d", len(params), len(tt.names))
			}
			for i, p := range params {
				if p.Name != tt.names[i] || p.Type != tt.types[i] {
					t.Errorf("param %d = %s %s, want %s %s", i, p.Name, p.Type, tt.names[i], tt.types[i])
				}
				if want := strings.HasPrefix(tt.names[i], "p"); p.Synthesized != want {
					t.Errorf("param %d Synthesized = %v, want %v", i, p.Synthesized, want)
				}
			}
		})
	}
}

func TestParse_FunctionErrors(t *testing.T) {
	tests := []struct {
		name   string
		decls  string
		detail string
		kind   errors.Kind
		funcs  []string
	}{
		{"receiver", "func (d Device) vkQueueWait()", "receiver arguments are unsupported", errors.KindUnsupported, []string{"good"}},
		{"body", "func vkFoo() {}", "missing terminator", errors.KindInvalidSyntax, []string{"good"}},
		{"variadic", "func vkFoo(args ...int32)", "variadic parameters are unsupported", errors.KindUnsupported, []string{"good"}},
		{"multiple results", "func vkFoo() (int32, error)", "multiple results are unsupported", errors.KindUnsupported, []string{"good"}},
		{"type parameters", "func vkFoo[T any](x T)", "type parameters are unsupported", errors.KindUnsupported, []string{"good"}},
		{"duplicate", "func vkFoo()\nfunc vkFoo(x int32)", `duplicate function "vkFoo"`, errors.KindDuplicate, []string{"vkFoo", "good"}},
		{"blank name", "func _()", "cannot name an extern function", errors.KindReserved, []string{"good"}},
		{"init", "func init()", "cannot name an extern function", errors.KindReserved, []string{"good"}},
		{"reserved prefix", "func __x()", "reserved for generated code", errors.KindReserved, []string{"good"}},
		{"runtime qualifier", "func vkFoo(dylink int32)", "runtime package qualifier", errors.KindReserved, []string{"good"}},
		{"shadowed function", "func vkFoo(vkFoo int32)", "shadows the function", errors.KindReserved, []string{"good"}},
		{"reserved parameter", "func vkFoo(__fn int32)", "reserved for generated code", errors.KindReserved, []string{"good"}},
		{"duplicate parameter", "func vkFoo(a, a int32)", `duplicate parameter "a", first declared at vk.go:`, errors.KindDuplicate, []string{"good"}},
		{"duplicate parameter across groups", "func vkFoo(a int32, b int64, a uint8)", `duplicate parameter "a"`, errors.KindDuplicate, []string{"good"}},
		{"synthesized collision", "func vkFoo(_ int32, p0 int32)", "collides with the name generated for parameter 0", errors.KindDuplicate, []string{"good"}},
		{"unknown directive", "//dylink:weak\nfunc vkFoo()", "unknown function directive //dylink:weak", errors.KindUnsupported, []string{"good"}},
		{"malformed symbol", "//dylink:symbol\nfunc vkFoo()", "malformed //dylink:symbol", errors.KindInvalidSyntax, []string{"good"}},
		{"symbol twice", "//dylink:symbol a\n//dylink:symbol b\nfunc vkFoo()", "duplicate directive", errors.KindDuplicate, []string{"good"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := input("//dylink:link vulkan", "type Device uintptr\n\n"+tt.decls+"\n\nfunc good(x int32) int32\n")
			b, diags := parse(t, src)
			if b == nil {
				t.Fatalf("block rejected: %v", diags.Err())
			}
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags.Err())
			}
			d := diags[0]
			if d.Phase != errors.PhaseDeclaration || d.Kind != tt.kind {
				t.Errorf("diag = [%s] %s, want [declaration] %s", d.Phase, d.Kind, tt.kind)
			}
			if !strings.Contains(d.Detail, tt.detail) {
				t.Errorf("Detail = %q, want %q", d.Detail, tt.detail)
			}
			if !d.Span.IsValid() || d.Span.Start.Filename != "vk.go" {
				t.Errorf("Span = %v", d.Span)
			}
			if got := funcNames(b); !slices.Equal(got, tt.funcs) {
				t.Errorf("functions = %v, want %v", got, tt.funcs)
			}
		})
	}
}

func TestParse_BlockErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		detail string
	}{
		{
			"missing link",
			"//dylink:extern \"C\"\npackage vk\n",
			"missing //dylink:link directive",
		},
		{
			"missing extern",
			"//dylink:link vulkan\npackage vk\n",
			"missing //dylink:extern directive",
		},
		{
			"bad annotation",
			input(`//dylink:link lib = "x"`, ""),
			"expected identifier `name`",
		},
		{
			"empty annotation",
			input("//dylink:link", ""),
			"empty link annotation",
		},
		{
			"unquoted abi",
			"//dylink:link vulkan\n//dylink:extern system\npackage vk\n",
			"malformed //dylink:extern directive",
		},
		{
			"duplicate link",
			input("//dylink:link vulkan\n//dylink:link opengl", ""),
			"duplicate directive \"//dylink:link\", first declared at vk.go:3:1",
		},
		{
			"unknown block directive",
			input("//dylink:link vulkan\n//dylink:lazy", ""),
			"unknown block directive //dylink:lazy",
		},
		{
			"runtime import collision",
			input("//dylink:link vulkan", "import dylink \"example.com/other\"\n"),
			"collides with the runtime package qualifier",
		},
		{
			"runtime blank import",
			input("//dylink:link vulkan", "import _ \"github.com/wippyai/dylink\"\n"),
			"cannot be imported as _",
		},
		{
			"runtime dot import",
			input("//dylink:link vulkan", "import . \"github.com/wippyai/dylink\"\n"),
			"cannot be imported as .",
		},
		{
			"go syntax",
			input("//dylink:link vulkan", "func (\n"),
			"expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, diags := parse(t, tt.src)
			if b != nil {
				t.Fatal("expected the block to be rejected")
			}
			if len(diags) == 0 {
				t.Fatal("expected diagnostics")
			}
			if !strings.Contains(diags[0].Error(), tt.detail) {
				t.Errorf("diagnostic %q does not contain %q", diags[0].Error(), tt.detail)
			}
		})
	}
}

func TestParse_AnnotationPosition(t *testing.T) {
	_, diags := parse(t, input(`//dylink:link name = 42`, ""))
	if len(diags) != 1 {
		t.Fatalf("diags = %v", diags.Err())
	}
	start := diags[0].Span.Start
	if start.Line != 3 || start.Column != 22 {
		t.Errorf("Start = %d:%d, want 3:22", start.Line, start.Column)
	}
	if diags[0].Phase != errors.PhaseAnnotation {
		t.Errorf("Phase = %v, want annotation", diags[0].Phase)
	}
}

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		link string
		want dylink.Strategy
	}{
		{"//dylink:link opengl", dylink.WellKnown(dylink.OpenGL)},
		{`//dylink:link name = "libc.so.6"`, dylink.Named("libc.so.6")},
		{`//dylink:link	any(name = "a", name = "b")`, dylink.NamedAny("a", "b")},
	}
	for _, tt := range tests {
		b, diags := parse(t, input(tt.link, "func f()\n"))
		if b == nil {
			t.Fatalf("%s: %v", tt.link, diags.Err())
		}
		if !b.Strategy.Equal(tt.want) {
			t.Errorf("%s: Strategy = %v, want %v", tt.link, b.Strategy, tt.want)
		}
	}
}

func TestParse_PassThroughAndImports(t *testing.T) {
	src := input(`//dylink:link name = "libext.so"`, `import (
	"unsafe"

	"example.com/ext"
	ext2 "example.com/ext/v2"
)

// Flags are creation flags.
const (
	FlagNone  = 0
	FlagDebug = 1
)

var sizeOfHandle = unsafe.Sizeof(uintptr(0))

func keep(h ext2.Handle) int32
func drop(hs ...ext.Handle)
`)

	b, diags := parse(t, src)
	if b == nil {
		t.Fatalf("block rejected: %v", diags.Err())
	}
	if len(diags) != 1 {
		t.Fatalf("diags = %v", diags.Err())
	}

	var paths []string
	for _, imp := range b.Imports {
		paths = append(paths, imp.Path)
	}
	if !slices.Equal(paths, []string{"unsafe", "example.com/ext/v2"}) {
		t.Errorf("imports = %v", paths)
	}
	if b.Imports[1].Name != "ext2" {
		t.Errorf("named import lost: %+v", b.Imports[1])
	}

	if len(b.Decls) != 2 {
		t.Fatalf("got %d pass-through decls, want 2", len(b.Decls))
	}
	if !strings.HasPrefix(b.Decls[0].Text, "// Flags are creation flags.\nconst (") {
		t.Errorf("doc comment not carried: %q", b.Decls[0].Text)
	}
	if !strings.HasSuffix(b.Decls[0].Text, ")") {
		t.Errorf("const block truncated: %q", b.Decls[0].Text)
	}
	if b.Decls[1].Text != "var sizeOfHandle = unsafe.Sizeof(uintptr(0))" {
		t.Errorf("var decl = %q", b.Decls[1].Text)
	}
}

func TestParse_Warnings(t *testing.T) {
	src := "//go:build dylink\n\n// Package vk binds Vulkan.\n//dylink:link vulkan\n//dylink:extern \"C\"\npackage vk\n\n//dylink:symbol stray\n\ntype T int\n"
	b, diags := parse(t, src)
	if b == nil || len(diags) != 0 {
		t.Fatalf("block = %v, diags = %v", b, diags.Err())
	}

	var msgs []string
	for _, w := range b.Warnings {
		msgs = append(msgs, w.Detail)
	}
	want := []string{"unused doc comment", "//dylink:symbol is ignored here", "declares no functions"}
	for _, w := range want {
		found := false
		for _, m := range msgs {
			if strings.Contains(m, w) {
				found = true
			}
		}
		if !found {
			t.Errorf("warnings %q do not mention %q", msgs, w)
		}
	}
}

func TestImportQualifier(t *testing.T) {
	tests := []struct {
		imp  importInfo
		want string
	}{
		{importInfo{Path: "unsafe"}, "unsafe"},
		{importInfo{Path: "example.com/ext/v2"}, "ext"},
		{importInfo{Path: "github.com/x/go-vk"}, "vk"},
		{importInfo{Name: "v", Path: "example.com/vulkan"}, "v"},
	}
	for _, tt := range tests {
		if got := tt.imp.Qualifier(); got != tt.want {
			t.Errorf("Qualifier(%q) = %q, want %q", tt.imp.Path, got, tt.want)
		}
	}
}
