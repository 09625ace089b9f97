// Package inject splices lifecycle bookkeeping into the trampolines of the
// Vulkan entry points that create and destroy instances and devices.
package inject

import (
	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/ir"
)

// Runtime table variables.
const (
	Instances = "Instances"
	Devices   = "Devices"
)

// Rule is the bookkeeping for one recognised entry point.
type Rule struct {
	Symbol string
	Table  string
	Op     ir.TrackOp
	// Param is the index of the parameter carrying the handle: the output
	// pointer for create, the handle itself for destroy.
	Param int
}

var rules = []Rule{
	{Symbol: "vkCreateInstance", Table: Instances, Op: ir.Register, Param: 2},
	{Symbol: "vkDestroyInstance", Table: Instances, Op: ir.Unregister, Param: 0},
	{Symbol: "vkCreateDevice", Table: Devices, Op: ir.Register, Param: 3},
	{Symbol: "vkDestroyDevice", Table: Devices, Op: ir.Unregister, Param: 0},
}

// Rules returns the recognised entry points.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Lookup returns the rule for a native symbol name.
func Lookup(symbol string) (Rule, bool) {
	for _, r := range rules {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return Rule{}, false
}

// Apply rewrites the unit body for a recognised entry point resolved through
// the Vulkan loader. The real call runs first, then the handle is tracked, then
// the call's result is returned unchanged. Other units are left alone.
func Apply(u *ir.Unit) *errors.Error {
	if !u.Strategy.Is(dylink.Vulkan) {
		return nil
	}
	rule, ok := Lookup(u.Signature.Symbol)
	if !ok {
		return nil
	}

	if n := len(u.Signature.Params); rule.Param >= n {
		return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			At(errors.Span{Start: u.Signature.Pos}).
			Symbol(u.Signature.Name).
			Detail("%s tracks parameter %d but is declared with %d parameter(s)", rule.Symbol, rule.Param, n).
			Build()
	}

	u.Body = []ir.Stmt{
		ir.Forward{},
		ir.Track{Table: rule.Table, Op: rule.Op, Param: rule.Param},
		ir.Return{},
	}
	return nil
}
