// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The loop-analysis surface the transform graph consumes.  The real
// analysis (finding the counted loop, computing stride and unroll
// factor, slicing memory) happens upstream; this holds its results.

package slp

import (
	"github.com/s48/vectorize/ir"
	"github.com/s48/vectorize/util"
)

type LoopT struct {
	Iv            *ir.NodeT // the induction-variable phi
	IvStride      int       // iv units advanced per loop-body execution
	UnrolledCount int       // original iterations per loop-body execution

	body util.SetT[*ir.NodeT]

	// Per-base memory state entering the loop, for threading memory
	// edges during apply.  Bases without an entry use the base object
	// itself as the initial state.
	MemoryInputs map[*ir.NodeT]*ir.NodeT
}

func MakeLoop(iv *ir.NodeT, ivStride int, unrolledCount int) *LoopT {
	if unrolledCount < 1 {
		panic("loop must contain at least one iteration")
	}
	loop := &LoopT{
		Iv:            iv,
		IvStride:      ivStride,
		UnrolledCount: unrolledCount,
		body:          util.NewSet[*ir.NodeT](),
		MemoryInputs:  map[*ir.NodeT]*ir.NodeT{},
	}
	if iv != nil {
		loop.body.Add(iv)
	}
	return loop
}

func (loop *LoopT) AddBody(nodes ...*ir.NodeT) {
	loop.body.Add(nodes...)
}

func (loop *LoopT) InLoop(node *ir.NodeT) bool {
	return loop.body.Contains(node)
}

//----------------------------------------------------------------

type AnalyzerT struct {
	Loop  *LoopT
	Costs *CostTableT

	// Opcodes the target executes for free, e.g. a compare that is
	// fused into the branch or mask op consuming it.
	ZeroCost util.SetT[ir.OpcodeT]
}

func MakeAnalyzer(loop *LoopT) *AnalyzerT {
	return &AnalyzerT{
		Loop:     loop,
		Costs:    DefaultCostTable(),
		ZeroCost: util.NewSet(ir.CmpI),
	}
}

func (analyzer *AnalyzerT) CostForScalar(op ir.OpcodeT) float32 {
	return analyzer.Costs.CostForScalar(op)
}

func (analyzer *AnalyzerT) CostForVector(op ir.OpcodeT, vlen int, elem ir.TypeT) float32 {
	return analyzer.Costs.CostForVector(op, vlen, elem)
}

func (analyzer *AnalyzerT) CostForVectorReduction(op ir.OpcodeT, vlen int, elem ir.TypeT,
	strictOrder bool) float32 {

	return analyzer.Costs.CostForVectorReduction(op, vlen, elem, strictOrder)
}

func (analyzer *AnalyzerT) HasZeroCost(node *ir.NodeT) bool {
	return analyzer.ZeroCost.Contains(node.Op)
}
