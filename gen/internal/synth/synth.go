// Package synth builds the cache cell and trampoline for each extern function.
package synth

import (
	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/inject"
	"github.com/wippyai/dylink/gen/internal/ir"
)

// Synthesize builds the unit for one function. The default trampoline body
// forwards the call to the resolved function; recognised lifecycle entry
// points get bookkeeping spliced in after the call.
func Synthesize(s dylink.Strategy, sig ir.Signature, trampolineID string) (ir.Unit, *errors.Error) {
	if !s.IsValid() {
		return ir.Unit{}, errors.New(errors.PhaseGenerate, errors.KindInternal).
			Symbol(sig.Name).
			Detail("invalid link strategy").
			Build()
	}
	if trampolineID == "" {
		return ir.Unit{}, errors.Internal("empty trampoline identifier for "+sig.Name, nil)
	}

	unit := ir.Unit{
		CellID:       sig.Name,
		TrampolineID: trampolineID,
		Signature:    sig,
		Strategy:     s,
		Body:         []ir.Stmt{ir.Forward{Tail: true}},
	}

	if err := inject.Apply(&unit); err != nil {
		return ir.Unit{}, err
	}
	return unit, nil
}

// Block synthesizes every function of a block, allocating one trampoline
// identifier per function in declaration order. Functions that fail are
// reported and skipped.
func Block(alloc *Allocator, s dylink.Strategy, sigs []ir.Signature) ([]ir.Unit, errors.List) {
	var (
		units []ir.Unit
		diags errors.List
	)
	for _, sig := range sigs {
		unit, err := Synthesize(s, sig, alloc.Next())
		if err != nil {
			diags.Add(err)
			continue
		}
		units = append(units, unit)
	}
	return units, diags
}
