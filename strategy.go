package dylink

import (
	"slices"
	"strconv"
	"strings"
)

// StrategyKind selects how a symbol is located at run time.
type StrategyKind uint8

const (
	// KindWellKnown resolves through an API-specific loader procedure.
	KindWellKnown StrategyKind = iota + 1
	// KindNamed resolves from a single named library.
	KindNamed
	// KindNamedAny tries libraries in order; the first hit wins.
	KindNamedAny
)

func (k StrategyKind) String() string {
	switch k {
	case KindWellKnown:
		return "well-known"
	case KindNamed:
		return "named"
	case KindNamedAny:
		return "named-any"
	}
	return "unknown"
}

// Tag identifies a well-known graphics API.
type Tag uint8

const (
	TagNone Tag = iota
	// Vulkan is the primary graphics API. Its lifecycle entry points are tracked.
	Vulkan
	// OpenGL is the legacy graphics API.
	OpenGL
)

// Keyword returns the annotation keyword for the tag.
func (t Tag) Keyword() string {
	switch t {
	case Vulkan:
		return "vulkan"
	case OpenGL:
		return "opengl"
	}
	return ""
}

func (t Tag) String() string {
	if kw := t.Keyword(); kw != "" {
		return kw
	}
	return "none"
}

// TagFromKeyword maps an annotation keyword to its tag.
func TagFromKeyword(kw string) (Tag, bool) {
	switch kw {
	case "vulkan":
		return Vulkan, true
	case "opengl":
		return OpenGL, true
	}
	return TagNone, false
}

// Strategy is the parsed form of a link annotation.
// Exactly one of the three variants is populated; the zero value is invalid.
type Strategy struct {
	libs []string
	kind StrategyKind
	tag  Tag
}

// WellKnown returns a strategy for a well-known API tag.
func WellKnown(tag Tag) Strategy {
	return Strategy{kind: KindWellKnown, tag: tag}
}

// Named returns a strategy resolving from a single library.
func Named(library string) Strategy {
	return Strategy{kind: KindNamed, libs: []string{library}}
}

// NamedAny returns a strategy trying each library in order.
// It panics if no library is given; the annotation parser rejects `any()`.
func NamedAny(libraries ...string) Strategy {
	if len(libraries) == 0 {
		panic("dylink: NamedAny requires at least one library")
	}
	return Strategy{kind: KindNamedAny, libs: slices.Clone(libraries)}
}

// Kind returns the strategy variant.
func (s Strategy) Kind() StrategyKind { return s.kind }

// Tag returns the well-known tag, or TagNone for named strategies.
func (s Strategy) Tag() Tag { return s.tag }

// IsValid reports whether s was produced by one of the constructors.
func (s Strategy) IsValid() bool {
	switch s.kind {
	case KindWellKnown:
		return s.tag == Vulkan || s.tag == OpenGL
	case KindNamed:
		return len(s.libs) == 1
	case KindNamedAny:
		return len(s.libs) > 0
	}
	return false
}

// Libraries returns the candidate libraries in resolution order.
// Named and single-entry NamedAny strategies return the same list.
func (s Strategy) Libraries() []string {
	return slices.Clone(s.libs)
}

// Is reports whether s is the well-known strategy for tag.
func (s Strategy) Is(tag Tag) bool {
	return s.kind == KindWellKnown && s.tag == tag
}

// Equal reports whether two strategies are the same variant with the same payload.
func (s Strategy) Equal(other Strategy) bool {
	return s.kind == other.kind && s.tag == other.tag && slices.Equal(s.libs, other.libs)
}

// String renders the strategy in annotation syntax.
func (s Strategy) String() string {
	switch s.kind {
	case KindWellKnown:
		return s.tag.String()
	case KindNamed:
		return "name = " + strconv.Quote(s.libs[0])
	case KindNamedAny:
		parts := make([]string, len(s.libs))
		for i, lib := range s.libs {
			parts[i] = "name = " + strconv.Quote(lib)
		}
		return "any(" + strings.Join(parts, ", ") + ")"
	}
	return "invalid"
}
