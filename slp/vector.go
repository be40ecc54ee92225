// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Vector nodes, one per pack the packer decided to form.  Each keeps
// the prototype of the pack it came from: the scalar opcode, the lane
// count, and the element type, which together determine the vector
// instruction to emit.

package slp

import (
	"fmt"

	"github.com/s48/vectorize/ir"
)

type PrototypeT struct {
	Origin *ir.NodeT // a representative scalar from the pack, for printing
	Sopc   ir.OpcodeT
	VecLen int
	Elem   ir.TypeT
}

func MakePrototype(origin *ir.NodeT, vlen int) PrototypeT {
	return PrototypeT{Origin: origin, Sopc: origin.Op, VecLen: vlen, Elem: origin.Elem}
}

type VectorNodeT struct {
	NodeBaseT
	PrototypeT
}

func (node *VectorNodeT) Vector() *VectorNodeT { return node }

func (node *VectorNodeT) PrintSpec() string {
	return fmt.Sprintf("%dx%s %s", node.VecLen, node.Elem, node.Sopc)
}

//----------------------------------------------------------------
// Lane-wise arithmetic and logic.

type ElementWiseVectorNodeT struct {
	VectorNodeT
	Vopc ir.OpcodeT
}

func (graph *GraphT) NewElementWiseVectorNode(prototype PrototypeT, reqCount int) *ElementWiseVectorNodeT {
	vopc, found := ir.VectorOpcode(prototype.Sopc)
	if !found {
		panic(fmt.Sprintf("no vector form for %s", prototype.Sopc))
	}
	node := &ElementWiseVectorNodeT{VectorNodeT{PrototypeT: prototype}, vopc}
	graph.addNode(node, reqCount)
	return node
}

func (node *ElementWiseVectorNodeT) Name() string { return "ElementWiseVector" }

func (node *ElementWiseVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(node.Vopc, node.VecLen, node.Elem)
}

func (node *ElementWiseVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	if node.req < 1 || 3 < node.req {
		panic(fmt.Sprintf("element-wise vector with %d inputs", node.req))
	}
	ins := make([]*ir.NodeT, node.req)
	for i := range ins {
		ins[i] = state.Emitted(node.in[i])
	}
	vn := state.IrGraph().NewVector(node.Vopc, node.Elem, node.VecLen, ins...)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

//----------------------------------------------------------------
// A packed comparison.  Emits nothing itself; the mask instruction is
// produced by the BoolVector that consumes it, which needs the
// compare's inputs and its own test condition together.

type CmpVectorNodeT struct {
	VectorNodeT
}

func (graph *GraphT) NewCmpVectorNode(prototype PrototypeT) *CmpVectorNodeT {
	node := &CmpVectorNodeT{VectorNodeT{PrototypeT: prototype}}
	graph.addNode(node, 2)
	return node
}

func (node *CmpVectorNodeT) Name() string                     { return "CmpVector" }
func (node *CmpVectorNodeT) Cost(analyzer *AnalyzerT) float32 { return 0 }

func (node *CmpVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	return ApplyResultT{}
}

//----------------------------------------------------------------
// The test half of a compare+bool pair, emitted as one mask compare.

type BoolTestT int

const (
	BoolEq BoolTestT = iota
	BoolNe
	BoolLt
	BoolLe
	BoolGt
	BoolGe
)

var boolTestNames = map[BoolTestT]string{
	BoolEq: "eq", BoolNe: "ne", BoolLt: "lt",
	BoolLe: "le", BoolGt: "gt", BoolGe: "ge",
}

func (test BoolTestT) String() string { return boolTestNames[test] }

type BoolVectorNodeT struct {
	VectorNodeT
	Test BoolTestT
}

func (graph *GraphT) NewBoolVectorNode(prototype PrototypeT, test BoolTestT) *BoolVectorNodeT {
	node := &BoolVectorNodeT{VectorNodeT{PrototypeT: prototype}, test}
	graph.addNode(node, 1)
	return node
}

func (node *BoolVectorNodeT) Name() string { return "BoolVector" }

func (node *BoolVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(ir.VectorMaskCmp, node.VecLen, node.Elem)
}

func (node *BoolVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	cmp := asCmpVector(node.in[0])
	if cmp == nil {
		panic("bool vector whose input is not a cmp vector")
	}
	in1 := state.Emitted(cmp.in[0])
	in2 := state.Emitted(cmp.in[1])
	test := state.IrGraph().NewConI(int64(node.Test), ir.Int32)
	vn := state.IrGraph().NewVector(ir.VectorMaskCmp, node.Elem, node.VecLen, in1, in2, test)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

func (node *BoolVectorNodeT) PrintSpec() string {
	return fmt.Sprintf("%dx%s mask %s", node.VecLen, node.Elem, node.Test)
}

//----------------------------------------------------------------
// Packed memory accesses.  Addresses are metadata rather than inputs;
// ordering against other memops comes from memory dependency edges.

type LoadVectorNodeT struct {
	VectorNodeT
	Ptr PointerT
}

func (graph *GraphT) NewLoadVectorNode(prototype PrototypeT, ptr PointerT) *LoadVectorNodeT {
	node := &LoadVectorNodeT{VectorNodeT{PrototypeT: prototype}, ptr}
	graph.addNode(node, 0)
	return node
}

func (node *LoadVectorNodeT) Name() string { return "LoadVector" }

func (node *LoadVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(ir.LoadVector, node.VecLen, node.Elem)
}

// A load can start from a memory state older than the current one,
// skipping over stores that provably touch other locations.

func (node *LoadVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	mem := state.MemoryState(node.Ptr.Base)
	for mem != nil && mem.Op == ir.StoreVector && MakePointer(mem).NeverOverlapsWith(node.Ptr) {
		mem = mem.MemIn
	}
	vn := state.IrGraph().NewVector(ir.LoadVector, node.Elem, node.VecLen)
	vn.Adr = ir.AdrT{Base: node.Ptr.Base, Invar: node.Ptr.Invar,
		Scale: node.Ptr.Scale, Con: node.Ptr.Con}
	vn.MemIn = mem
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

func (node *LoadVectorNodeT) PrintSpec() string {
	return fmt.Sprintf("%dx%s load con %d", node.VecLen, node.Elem, node.Ptr.Con)
}

type StoreVectorNodeT struct {
	VectorNodeT
	Ptr PointerT
}

func (graph *GraphT) NewStoreVectorNode(prototype PrototypeT, ptr PointerT) *StoreVectorNodeT {
	node := &StoreVectorNodeT{VectorNodeT{PrototypeT: prototype}, ptr}
	graph.addNode(node, 1)
	return node
}

func (node *StoreVectorNodeT) Name() string { return "StoreVector" }

func (node *StoreVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(ir.StoreVector, node.VecLen, node.Elem)
}

func (node *StoreVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	value := state.Emitted(node.in[0])
	vn := state.IrGraph().NewVector(ir.StoreVector, node.Elem, node.VecLen, value)
	vn.Adr = ir.AdrT{Base: node.Ptr.Base, Invar: node.Ptr.Invar,
		Scale: node.Ptr.Scale, Con: node.Ptr.Con}
	vn.MemIn = state.MemoryState(node.Ptr.Base)
	state.SetMemoryState(node.Ptr.Base, vn)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

func (node *StoreVectorNodeT) PrintSpec() string {
	return fmt.Sprintf("%dx%s store con %d", node.VecLen, node.Elem, node.Ptr.Con)
}

//----------------------------------------------------------------
// Fold a vector down to one scalar.  In(0) is the incoming scalar
// accumulator, In(1) the vector of lane values.

type ReductionVectorNodeT struct {
	VectorNodeT
}

func (graph *GraphT) NewReductionVectorNode(prototype PrototypeT) *ReductionVectorNodeT {
	node := &ReductionVectorNodeT{VectorNodeT{PrototypeT: prototype}}
	graph.addNode(node, 2)
	// The folded scalar is the loop's result even when nothing in the
	// graph consumes it.
	node.keep = true
	return node
}

func (node *ReductionVectorNodeT) Name() string { return "ReductionVector" }

func (node *ReductionVectorNodeT) ReductionOpcode() ir.OpcodeT {
	ropc, found := ir.ReductionOpcode(node.Sopc)
	if !found {
		panic(fmt.Sprintf("no reduction form for %s", node.Sopc))
	}
	return ropc
}

func (node *ReductionVectorNodeT) RequiresStrictOrder() bool {
	return ir.ReductionRequiresStrictOrder(node.ReductionOpcode(), node.Elem)
}

func (node *ReductionVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVectorReduction(node.ReductionOpcode(), node.VecLen, node.Elem,
		node.RequiresStrictOrder())
}

func (node *ReductionVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	init := state.Emitted(node.in[0])
	vec := state.Emitted(node.in[1])
	vn := state.IrGraph().NewVector(node.ReductionOpcode(), node.Elem, node.VecLen, init, vec)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

//----------------------------------------------------------------
// Broadcast one scalar to every lane.

type ReplicateNodeT struct {
	VectorNodeT
}

func (graph *GraphT) NewReplicateNode(prototype PrototypeT) *ReplicateNodeT {
	node := &ReplicateNodeT{VectorNodeT{PrototypeT: prototype}}
	graph.addNode(node, 1)
	return node
}

func (node *ReplicateNodeT) Name() string { return "Replicate" }

func (node *ReplicateNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(ir.Replicate, node.VecLen, node.Elem)
}

func (node *ReplicateNodeT) Apply(state *ApplyStateT) ApplyResultT {
	value := state.Emitted(node.in[0])
	vn := state.IrGraph().NewVector(ir.Replicate, node.Elem, node.VecLen, value)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

//----------------------------------------------------------------
// A shared shift count for a packed shift.  The count is masked to
// the element width first, matching scalar shift semantics.

type ShiftCountNodeT struct {
	VectorNodeT
	ShiftMask int
}

func (graph *GraphT) NewShiftCountNode(prototype PrototypeT) *ShiftCountNodeT {
	mask := prototype.Elem.ByteSize()*8 - 1
	node := &ShiftCountNodeT{VectorNodeT{PrototypeT: prototype}, mask}
	graph.addNode(node, 1)
	return node
}

func (node *ShiftCountNodeT) Name() string { return "ShiftCount" }

func (node *ShiftCountNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForScalar(ir.AndI) +
		analyzer.CostForVector(ir.ShiftCountV, node.VecLen, node.Elem)
}

func (node *ShiftCountNodeT) Apply(state *ApplyStateT) ApplyResultT {
	count := state.Emitted(node.in[0])
	mask := state.IrGraph().NewConI(int64(node.ShiftMask), ir.Int32)
	masked := state.IrGraph().NewNode(ir.AndI, ir.Int32, count, mask)
	vn := state.IrGraph().NewVector(ir.ShiftCountV, node.Elem, node.VecLen, masked)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

func (node *ShiftCountNodeT) PrintSpec() string {
	return fmt.Sprintf("%dx%s shift count mask 0x%x", node.VecLen, node.Elem, node.ShiftMask)
}

//----------------------------------------------------------------
// The vector [iv, iv+1, ... iv+vlen-1].

type PopulateIndexNodeT struct {
	VectorNodeT
}

func (graph *GraphT) NewPopulateIndexNode(prototype PrototypeT) *PopulateIndexNodeT {
	node := &PopulateIndexNodeT{VectorNodeT{PrototypeT: prototype}}
	graph.addNode(node, 1)
	return node
}

func (node *PopulateIndexNodeT) Name() string { return "PopulateIndex" }

func (node *PopulateIndexNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(ir.PopulateIndex, node.VecLen, node.Elem)
}

func (node *PopulateIndexNodeT) Apply(state *ApplyStateT) ApplyResultT {
	iv := state.Emitted(node.in[0])
	vn := state.IrGraph().NewVector(ir.PopulateIndex, node.Elem, node.VecLen, iv)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

//----------------------------------------------------------------
// A scalar int-to-long conversion kept scalar, feeding a replicate or
// other scalar use.

type ConvI2LNodeT struct {
	NodeBaseT
	Origin *ir.NodeT
}

func (graph *GraphT) NewConvI2LNode(origin *ir.NodeT) *ConvI2LNodeT {
	node := &ConvI2LNodeT{Origin: origin}
	graph.addNode(node, 1)
	return node
}

func (node *ConvI2LNodeT) Name() string { return "ConvI2L" }

func (node *ConvI2LNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForScalar(ir.ConvI2L)
}

func (node *ConvI2LNodeT) Apply(state *ApplyStateT) ApplyResultT {
	value := state.Emitted(node.in[0])
	return makeScalarResult(state.IrGraph().NewNode(ir.ConvI2L, ir.Int64, value))
}

func (node *ConvI2LNodeT) PrintSpec() string {
	return fmt.Sprintf("node[%d %s]", node.Origin.Id, node.Origin.Op)
}

//----------------------------------------------------------------
// An explicit lane-type cast, currently only long to narrower int.

type VectorCastNodeT struct {
	VectorNodeT
	Vopc ir.OpcodeT
}

func (graph *GraphT) NewVectorCastNode(prototype PrototypeT, vopc ir.OpcodeT) *VectorCastNodeT {
	node := &VectorCastNodeT{VectorNodeT{PrototypeT: prototype}, vopc}
	graph.addNode(node, 1)
	return node
}

func (node *VectorCastNodeT) Name() string { return "VectorCast" }

func (node *VectorCastNodeT) Cost(analyzer *AnalyzerT) float32 {
	return analyzer.CostForVector(node.Vopc, node.VecLen, node.Elem)
}

func (node *VectorCastNodeT) Apply(state *ApplyStateT) ApplyResultT {
	value := state.Emitted(node.in[0])
	vn := state.IrGraph().NewVector(node.Vopc, node.Elem, node.VecLen, value)
	return makeVectorResult(vn, node.VecLen, node.VecLen*node.Elem.ByteSize())
}

//----------------------------------------------------------------
// A long operation whose lanes only need their low int.  The
// optimizer lowers it to the long vector op followed by a narrowing
// cast; it must not survive to apply.

type LongToIntVectorNodeT struct {
	VectorNodeT
}

func (graph *GraphT) NewLongToIntVectorNode(prototype PrototypeT, reqCount int) *LongToIntVectorNodeT {
	node := &LongToIntVectorNodeT{VectorNodeT{PrototypeT: prototype}}
	graph.addNode(node, reqCount)
	return node
}

func (node *LongToIntVectorNodeT) Name() string { return "LongToIntVector" }

func (node *LongToIntVectorNodeT) Cost(analyzer *AnalyzerT) float32 {
	vopc, found := ir.VectorOpcode(node.Sopc)
	if !found {
		panic(fmt.Sprintf("no vector form for %s", node.Sopc))
	}
	return analyzer.CostForVector(vopc, node.VecLen, ir.Int64) +
		analyzer.CostForVector(ir.VectorCastL2X, node.VecLen, node.Elem)
}

func (node *LongToIntVectorNodeT) Apply(state *ApplyStateT) ApplyResultT {
	panic("long-to-int vector must be lowered before apply")
}
