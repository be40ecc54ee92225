// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Transform-graph nodes.  A node wraps either a pre-existing scalar
// instruction or a vector operation to be emitted, and carries the
// def/use edges the scheduler walks.  Node identity is the stable
// index into the owning graph's node list; dead nodes are marked,
// never removed, so indices held elsewhere stay valid.

package slp

import (
	"fmt"

	"github.com/s48/vectorize/ir"
	"github.com/s48/vectorize/util"
)

type NodeT interface {
	Base() *NodeBaseT
	Name() string

	// Execution cost estimate; 0 for proven-free operations.
	Cost(analyzer *AnalyzerT) float32

	// Emit the real instruction(s) for this node.  Called exactly
	// once per node, in schedule order.
	Apply(state *ApplyStateT) ApplyResultT

	// Attempt one local rewrite; reports whether any was made.
	Optimize(analyzer *AnalyzerT, graph *GraphT) bool

	PrintSpec() string
}

//----------------------------------------------------------------

type NodeBaseT struct {
	Idx   int
	req   int // in[0:req] are data inputs, the rest memory dependencies
	in    []NodeT
	out   []NodeT // derived use edges, alive uses only
	alive bool
	keep  bool // value escapes the loop, never retired while set
}

func (base *NodeBaseT) Base() *NodeBaseT { return base }
func (base *NodeBaseT) Req() int         { return base.req }
func (base *NodeBaseT) InCount() int     { return len(base.in) }
func (base *NodeBaseT) In(i int) NodeT   { return base.in[i] }
func (base *NodeBaseT) Outs() int        { return len(base.out) }
func (base *NodeBaseT) Out(i int) NodeT  { return base.out[i] }
func (base *NodeBaseT) IsAlive() bool    { return base.alive }

// Default: no local rewrite available.
func (base *NodeBaseT) Optimize(analyzer *AnalyzerT, graph *GraphT) bool { return false }

func (base *NodeBaseT) HasReqOrDependency() bool {
	return util.Any(func(def NodeT) bool { return def != nil }, base.in)
}

func UniqueOut(node NodeT) NodeT {
	base := node.Base()
	if base.Outs() != 1 {
		panic(fmt.Sprintf("node %d has %d uses, not one", base.Idx, base.Outs()))
	}
	return base.Out(0)
}

//----------------------------------------------------------------
// Edge surgery.  All input changes go through these so that the use
// lists stay in sync.

func InitReq(node NodeT, i int, def NodeT) {
	base := node.Base()
	if base.in[i] != nil {
		panic(fmt.Sprintf("input %d of node %d is already set", i, base.Idx))
	}
	base.in[i] = def
	if def != nil {
		util.Push(&def.Base().out, node)
	}
}

func SetReq(node NodeT, i int, def NodeT) {
	base := node.Base()
	old := base.in[i]
	if old == def {
		return
	}
	if old != nil {
		removeOut(old, node)
	}
	base.in[i] = def
	if def != nil {
		util.Push(&def.Base().out, node)
	}
}

// Memory/ordering dependencies go after the required inputs.

func AddMemoryDependency(node NodeT, def NodeT) {
	base := node.Base()
	util.Push(&base.in, def)
	util.Push(&def.Base().out, node)
}

// Redirect all of node's uses to replacement, leaving node dead code.

func ReplaceBy(node NodeT, replacement NodeT) {
	base := node.Base()
	for _, use := range base.out {
		useBase := use.Base()
		for i, def := range useBase.in {
			if def == node {
				useBase.in[i] = replacement
				util.Push(&replacement.Base().out, use)
			}
		}
	}
	base.out = base.out[:0]
}

func removeOut(def NodeT, use NodeT) {
	outs := def.Base().out
	for i, u := range outs {
		if u == use {
			last := len(outs) - 1
			outs[i] = outs[last]
			def.Base().out = outs[:last]
			return
		}
	}
	panic(fmt.Sprintf("node %d is not a use of node %d", use.Base().Idx, def.Base().Idx))
}

//----------------------------------------------------------------
// A value defined outside the loop.  A source with no scheduling
// obligations; it is never retired even with no observed uses.

type OuterNodeT struct {
	NodeBaseT
	N *ir.NodeT
}

func (graph *GraphT) NewOuterNode(n *ir.NodeT) *OuterNodeT {
	node := &OuterNodeT{N: n}
	graph.addNode(node, 0)
	return node
}

func (node *OuterNodeT) Name() string                     { return "Outer" }
func (node *OuterNodeT) Cost(analyzer *AnalyzerT) float32 { return 0 }

func (node *OuterNodeT) Apply(state *ApplyStateT) ApplyResultT {
	return makeScalarResult(node.N)
}

func (node *OuterNodeT) PrintSpec() string {
	return fmt.Sprintf("node[%d %s]", node.N.Id, node.N.Op)
}

//----------------------------------------------------------------
// A scalar operation that stays scalar, with rewired inputs.

type ScalarNodeT struct {
	NodeBaseT
	N *ir.NodeT
}

func (graph *GraphT) NewScalarNode(n *ir.NodeT) *ScalarNodeT {
	node := &ScalarNodeT{N: n}
	graph.addNode(node, len(n.In))
	return node
}

func (node *ScalarNodeT) Name() string { return "Scalar" }

func (node *ScalarNodeT) Cost(analyzer *AnalyzerT) float32 {
	if analyzer.HasZeroCost(node.N) {
		return 0
	}
	return analyzer.CostForScalar(node.N.Op)
}

// Inputs that have a transform node may have changed.

func (node *ScalarNodeT) Apply(state *ApplyStateT) ApplyResultT {
	for i := 0; i < node.req; i++ {
		if def := node.in[i]; def != nil {
			node.N.SetIn(i, state.Emitted(def))
		}
	}
	return makeScalarResult(node.N)
}

func (node *ScalarNodeT) PrintSpec() string {
	return fmt.Sprintf("node[%d %s]", node.N.Id, node.N.Op)
}

//----------------------------------------------------------------
// A scalar load or store inside the loop.

type MemopScalarNodeT struct {
	ScalarNodeT
	Ptr PointerT
}

func (graph *GraphT) NewMemopScalarNode(n *ir.NodeT) *MemopScalarNodeT {
	if !n.IsMemop() {
		panic("memop node for non-memop " + n.String())
	}
	node := &MemopScalarNodeT{ScalarNodeT: ScalarNodeT{N: n}, Ptr: MakePointer(n)}
	graph.addNode(node, len(n.In))
	return node
}

func (node *MemopScalarNodeT) Name() string { return "MemopScalar" }

func (node *MemopScalarNodeT) Apply(state *ApplyStateT) ApplyResultT {
	result := node.ScalarNodeT.Apply(state)
	base := node.N.Adr.Base
	node.N.MemIn = state.MemoryState(base)
	if node.N.IsStore() {
		state.SetMemoryState(base, node.N)
	}
	return result
}

//----------------------------------------------------------------
// The loop-carried merge point.  Input slots:
//   0: pre-loop value
//   1: reserved for the merged in-loop value (always nil here; the
//      emitted phi gets its backedge hooked up during apply cleanup)
//   2: backedge, the node producing the value at the end of the
//      iteration.  Always treated as a back-edge by the scheduler.

type LoopPhiNodeT struct {
	NodeBaseT
	N *ir.NodeT
}

func (graph *GraphT) NewLoopPhiNode(n *ir.NodeT) *LoopPhiNodeT {
	if n.Op != ir.Phi {
		panic("loop phi for non-phi " + n.String())
	}
	node := &LoopPhiNodeT{N: n}
	graph.addNode(node, 3)
	return node
}

func (node *LoopPhiNodeT) Name() string                     { return "LoopPhi" }
func (node *LoopPhiNodeT) Cost(analyzer *AnalyzerT) float32 { return 0 }

func (node *LoopPhiNodeT) Apply(state *ApplyStateT) ApplyResultT {
	init := state.Emitted(node.in[0])
	node.N.SetIn(0, init)
	// The init may have changed from scalar to vector.
	node.N.Elem = init.Elem
	node.N.VecLen = init.VecLen
	return makeScalarResult(node.N)
}

// In the schedule the backedge comes after its phi, so its emitted
// value only exists once all nodes are applied.  Hook it up now.

func (node *LoopPhiNodeT) ApplyCleanup(state *ApplyStateT) {
	node.N.SetIn(1, state.Emitted(node.in[2]))
}

func (node *LoopPhiNodeT) PrintSpec() string {
	return fmt.Sprintf("node[%d %s]", node.N.Id, node.N.Op)
}

//----------------------------------------------------------------
// Kind tests.  Code dispatches through these rather than inspecting
// use lists; a node never looks at its own users for correctness
// decisions beyond liveness.

func asLoopPhi(node NodeT) *LoopPhiNodeT {
	phi, _ := node.(*LoopPhiNodeT)
	return phi
}

func asOuter(node NodeT) *OuterNodeT {
	outer, _ := node.(*OuterNodeT)
	return outer
}

func asReductionVector(node NodeT) *ReductionVectorNodeT {
	red, _ := node.(*ReductionVectorNodeT)
	return red
}

func asCmpVector(node NodeT) *CmpVectorNodeT {
	cmp, _ := node.(*CmpVectorNodeT)
	return cmp
}

func asVector(node NodeT) *VectorNodeT {
	if vector, ok := node.(interface{ Vector() *VectorNodeT }); ok {
		return vector.Vector()
	}
	return nil
}

func isLoadOrStoreInLoop(node NodeT) bool {
	switch node.(type) {
	case *MemopScalarNodeT, *LoadVectorNodeT, *StoreVectorNodeT:
		return true
	}
	return false
}

func isLoadInLoop(node NodeT) bool {
	switch memop := node.(type) {
	case *MemopScalarNodeT:
		return memop.N.IsLoad()
	case *LoadVectorNodeT:
		return true
	}
	return false
}

// The pointer of an in-loop load or store; invalid for other nodes.

func memopPointer(node NodeT) PointerT {
	switch memop := node.(type) {
	case *MemopScalarNodeT:
		return memop.Ptr
	case *LoadVectorNodeT:
		return memop.Ptr
	case *StoreVectorNodeT:
		return memop.Ptr
	}
	return PointerT{}
}
