// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Graph optimization.  Local rewrites run to a fixpoint, with dead
// node collection interleaved so that a rewrite's leftovers are gone
// before the next sweep.  Rewrites only ever add nodes and redirect
// edges, so the arena only grows.

package slp

import (
	"github.com/s48/vectorize/ir"
	"github.com/s48/vectorize/util"
)

func (graph *GraphT) Optimize(analyzer *AnalyzerT) {
	if graph.scheduled {
		panic("optimizing a graph that has already been scheduled")
	}
	for {
		changed := false
		// Indexed loop: rewrites append nodes and the new ones get
		// their turn in the same sweep.
		for i := 0; i < len(graph.nodes); i++ {
			node := graph.nodes[i]
			if node.Base().IsAlive() {
				changed = node.Optimize(analyzer, graph) || changed
			}
		}
		changed = graph.collectDeadNodes() || changed
		if !changed {
			return
		}
	}
}

func (graph *GraphT) collectDeadNodes() bool {
	changed := false
	again := true
	for again {
		again = false
		for _, node := range graph.nodes {
			base := node.Base()
			if base.IsAlive() && base.Outs() == 0 && !dceKept(node) {
				graph.markDead(node)
				changed = true
				again = true
			}
		}
	}
	return changed
}

//----------------------------------------------------------------
// Reduction hoisting.  A chain of order-insensitive reductions
//
//   phi -> R1 -> R2 ... Rn -> phi backedge
//
// folds every lane into the scalar accumulator on every iteration.
// Cheaper: keep a vector accumulator in the loop, combined with
// plain element-wise ops, and fold the lanes once after the loop:
//
//   phi' init    = Replicate(identity)
//   in loop      phi' -> V1 -> V2 ... Vn -> phi' backedge
//   after loop   result = Reduction(old init, Vn)
//
// The final reduction is emitted with the body but has no in-loop
// uses, so in-loop marking leaves it out of the per-iteration cost.
// Strict-order reductions (float add and mul) are not eligible, the
// lane order would change.

func (node *ReductionVectorNodeT) Optimize(analyzer *AnalyzerT, graph *GraphT) bool {
	if node.RequiresStrictOrder() {
		return false
	}
	phi := node.backedgePhi()
	if phi == nil {
		return false
	}
	// The rewrite turns the scalar accumulator into a vector of lane
	// sums, so nothing else may read it: the phi's only use must be
	// the chain, the chain head's only use the phi backedge.
	if phi.Outs() != 1 || node.Outs() != 1 {
		return false
	}

	// Walk the chain from the backedge down to the phi.  Reductions
	// between the ends must have the next reduction as their only use.
	chain := []*ReductionVectorNodeT{}
	link := NodeT(node)
	for {
		red := asReductionVector(link)
		if red == nil ||
			red.Sopc != node.Sopc || red.VecLen != node.VecLen || red.Elem != node.Elem {
			return false
		}
		if red != node && (red.Outs() != 1 || red.Out(0) != NodeT(util.Last(chain))) {
			return false
		}
		chain = append(chain, red)
		link = red.In(0)
		if link == NodeT(phi) {
			break
		}
	}

	identityCon := graph.irg.NewConI(ir.ReductionIdentity(node.Sopc, node.Elem), node.Elem)
	identityVector := graph.NewReplicateNode(node.PrototypeT)
	InitReq(identityVector, 0, graph.NewOuterNode(identityCon))

	oldInit := phi.In(0)
	SetReq(phi, 0, identityVector)

	// Element-wise ops replace the reductions, innermost first.
	accumulator := NodeT(phi)
	for i := len(chain) - 1; 0 <= i; i-- {
		vectorOp := graph.NewElementWiseVectorNode(chain[i].PrototypeT, 2)
		InitReq(vectorOp, 0, accumulator)
		InitReq(vectorOp, 1, chain[i].In(1))
		accumulator = vectorOp
	}
	SetReq(phi, 2, accumulator)

	final := graph.NewReductionVectorNode(node.PrototypeT)
	InitReq(final, 0, oldInit)
	InitReq(final, 1, accumulator)
	// The final reduction takes over as the loop's result; the old
	// chain has no uses left and is collected.
	for _, red := range chain {
		red.keep = false
	}

	if graph.config.TraceOptimize {
		graph.config.Logger.Debug("hoisted reduction chain out of loop",
			"length", len(chain), "spec", node.PrintSpec())
	}
	return true
}

// The loop phi this reduction feeds the backedge of, if any.

func (node *ReductionVectorNodeT) backedgePhi() *LoopPhiNodeT {
	for i := 0; i < node.Outs(); i++ {
		if phi := asLoopPhi(node.Out(i)); phi != nil && phi.In(2) == NodeT(node) {
			return phi
		}
	}
	return nil
}

//----------------------------------------------------------------
// Long-to-int lowering.  The packed form is the full long operation
// followed by a narrowing cast; lanes that only need their low int
// still have to be computed at long width.

func (node *LongToIntVectorNodeT) Optimize(analyzer *AnalyzerT, graph *GraphT) bool {
	if node.Outs() == 0 {
		return false // already replaced, waiting for collection
	}
	longPrototype := node.PrototypeT
	longPrototype.Elem = ir.Int64
	longOp := graph.NewElementWiseVectorNode(longPrototype, node.Req())
	for i := 0; i < node.Req(); i++ {
		InitReq(longOp, i, node.In(i))
	}
	cast := graph.NewVectorCastNode(node.PrototypeT, ir.VectorCastL2X)
	InitReq(cast, 0, longOp)
	ReplaceBy(node, cast)

	if graph.config.TraceOptimize {
		graph.config.Logger.Debug("lowered long-to-int vector", "spec", node.PrintSpec())
	}
	return true
}
