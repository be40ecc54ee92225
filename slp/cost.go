// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Per-architecture operation costs.  Costs are opaque lookups keyed
// by (opcode, vector length, element type); the absolute numbers only
// matter relative to the scalar loop's cost.

package slp

import (
	"math/bits"
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/s48/vectorize/ir"
)

type vectorKeyT struct {
	op   ir.OpcodeT
	vlen int
	elem ir.TypeT
}

type CostTableT struct {
	scalar        map[ir.OpcodeT]float32
	vector        map[vectorKeyT]float32
	scalarDefault float32
	vectorDefault float32
}

func MakeCostTable() *CostTableT {
	return &CostTableT{
		scalar:        map[ir.OpcodeT]float32{},
		vector:        map[vectorKeyT]float32{},
		scalarDefault: 1,
		vectorDefault: 1,
	}
}

func (table *CostTableT) SetScalar(op ir.OpcodeT, cost float32) {
	table.scalar[op] = cost
}

func (table *CostTableT) SetVector(op ir.OpcodeT, vlen int, elem ir.TypeT, cost float32) {
	table.vector[vectorKeyT{op, vlen, elem}] = cost
}

func (table *CostTableT) CostForScalar(op ir.OpcodeT) float32 {
	if cost, found := table.scalar[op]; found {
		return cost
	}
	return table.scalarDefault
}

func (table *CostTableT) CostForVector(op ir.OpcodeT, vlen int, elem ir.TypeT) float32 {
	if cost, found := table.vector[vectorKeyT{op, vlen, elem}]; found {
		return cost
	}
	return table.vectorDefault
}

// A strict-order reduction accumulates lanes serially; a non-strict
// one can use a log-depth lane tree.

func (table *CostTableT) CostForVectorReduction(op ir.OpcodeT, vlen int, elem ir.TypeT,
	strictOrder bool) float32 {

	base := table.CostForVector(op, vlen, elem)
	if strictOrder {
		return base * float32(vlen)
	}
	return base * float32(bits.Len(uint(vlen)))
}

// The default table is picked by probing the CPU.  This is coarse:
// multiplies are a little dearer everywhere, and pre-AVX2 machines
// pay double for wide vector ops because the hardware splits them.

func DefaultCostTable() *CostTableT {
	table := MakeCostTable()
	table.SetScalar(ir.MulI, 2)
	if runtime.GOARCH == "amd64" && !cpuid.CPU.Supports(cpuid.AVX2) {
		table.vectorDefault = 2
	}
	for _, elem := range []ir.TypeT{ir.Int8, ir.Int16, ir.Int32, ir.Int64} {
		for vlen := 2; vlen <= 64; vlen *= 2 {
			table.SetVector(ir.MulV, vlen, elem, table.vectorDefault*2)
		}
	}
	return table
}
