package synth

import (
	"strconv"
	"sync/atomic"
)

// TrampolinePrefix starts every generated trampoline name.
const TrampolinePrefix = "__initializer"

// Allocator hands out trampoline identifiers. One allocator serves one
// generator run; identifiers are never reused within it.
//
// Allocator is safe for concurrent use.
type Allocator struct {
	next atomic.Uint64
}

// Next returns the next identifier: __initializer0, __initializer1, ...
func (a *Allocator) Next() string {
	n := a.next.Add(1) - 1
	return TrampolinePrefix + strconv.FormatUint(n, 10)
}

// Issued returns how many identifiers have been handed out.
func (a *Allocator) Issued() uint64 {
	return a.next.Load()
}
