package dylink

// ABI is the calling convention tag of an extern block, e.g. "C" or "system".
type ABI string

const (
	ABIC      ABI = "C"
	ABISystem ABI = "system"
	ABICdecl  ABI = "cdecl"
)

// Supported reports whether functions with this ABI can be bound.
// The binder only speaks the platform C convention, which "system" and
// "cdecl" alias on every target the loader supports.
func (a ABI) Supported() bool {
	switch a {
	case ABIC, ABISystem, ABICdecl:
		return true
	}
	return false
}
