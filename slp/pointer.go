// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// A pointer describes the memory region a load or store touches:
//   [adr, adr + size)
//   adr = base + invar + scale * iv + con
// Pointers in the same group (same base, invar and scale) can be
// compared exactly; across groups nothing is known.

package slp

import (
	"math"

	"github.com/s48/vectorize/ir"
)

type PointerT struct {
	Base  *ir.NodeT
	Invar *ir.NodeT
	Scale int
	Con   int
	Size  int // bytes

	valid bool
}

func MakePointer(memop *ir.NodeT) PointerT {
	if !memop.IsMemop() {
		panic("pointer for non-memop " + memop.String())
	}
	adr := memop.Adr
	if adr.Base == nil {
		return PointerT{} // address did not parse upstream
	}
	return PointerT{
		Base:  adr.Base,
		Invar: adr.Invar,
		Scale: adr.Scale,
		Con:   adr.Con,
		Size:  memop.AccessSize(),
		valid: true,
	}
}

func (pointer PointerT) IsValid() bool {
	return pointer.valid
}

// The pointer at a later virtual iteration, for the super-unrolled
// forwarding trace.  An offset that cannot be represented makes the
// result invalid; the caller just omits the region.

func (pointer PointerT) WithIvOffset(ivOffset int) PointerT {
	con := int64(pointer.Con) + int64(pointer.Scale)*int64(ivOffset)
	if con < math.MinInt32 || math.MaxInt32 < con {
		return PointerT{}
	}
	result := pointer
	result.Con = int(con)
	return result
}

// Sort by (base, invar, scale), except for the con.

func cmpPointerGroup(p1 PointerT, p2 PointerT) int {
	if cmp := cmpNodeId(p1.Base, p2.Base); cmp != 0 {
		return cmp
	}
	if cmp := cmpNodeId(p1.Invar, p2.Invar); cmp != 0 {
		return cmp
	}
	return cmpInt(p1.Scale, p2.Scale)
}

func cmpPointer(p1 PointerT, p2 PointerT) int {
	if cmp := cmpPointerGroup(p1, p2); cmp != 0 {
		return cmp
	}
	return cmpInt(p1.Con, p2.Con)
}

// Does this pointer provably not touch the other's region?  Only
// same-group pointers can be disambiguated.

func (pointer PointerT) NeverOverlapsWith(other PointerT) bool {
	if !pointer.valid || !other.valid {
		return false
	}
	if cmpPointerGroup(pointer, other) != 0 {
		return false
	}
	return other.Con+other.Size <= pointer.Con ||
		pointer.Con+pointer.Size <= other.Con
}

func cmpNodeId(n1 *ir.NodeT, n2 *ir.NodeT) int {
	id1, id2 := -1, -1
	if n1 != nil {
		id1 = n1.Id
	}
	if n2 != nil {
		id2 = n2.Id
	}
	return cmpInt(id1, id2)
}

func cmpInt(x int, y int) int {
	if x < y {
		return -1
	}
	if x > y {
		return 1
	}
	return 0
}
