// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The transform graph itself: the arena of nodes, liveness, the
// in-loop marking used for costing, and the overall cost query.
// The lifecycle is build, optimize, schedule, cost, apply; schedule
// and apply refuse to run out of order.

package slp

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/s48/vectorize/ir"
)

type GraphT struct {
	config ConfigT
	irg    *ir.GraphT

	nodes    []NodeT
	schedule []NodeT

	scheduled  bool
	applied    bool
	applyState *ApplyStateT
}

func MakeGraph(config ConfigT, irGraph *ir.GraphT) *GraphT {
	return &GraphT{config: config, irg: irGraph}
}

func (graph *GraphT) Config() ConfigT   { return graph.config }
func (graph *GraphT) Nodes() []NodeT    { return graph.nodes }
func (graph *GraphT) IsScheduled() bool { return graph.scheduled }

func (graph *GraphT) ScheduledNodes() []NodeT {
	if !graph.scheduled {
		panic("no schedule has been found")
	}
	return graph.schedule
}

func (graph *GraphT) addNode(node NodeT, reqCount int) {
	base := node.Base()
	base.Idx = len(graph.nodes)
	base.req = reqCount
	base.in = make([]NodeT, reqCount)
	base.alive = true
	graph.nodes = append(graph.nodes, node)
}

func (graph *GraphT) AliveCount() int {
	count := 0
	for _, node := range graph.nodes {
		if node.Base().IsAlive() {
			count += 1
		}
	}
	return count
}

// Retire a node.  The node stays in the arena so indices remain
// stable, but it drops off its defs' use lists, which may in turn
// leave them unused.

func (graph *GraphT) markDead(node NodeT) {
	base := node.Base()
	if !base.alive {
		panic(fmt.Sprintf("node %d is already dead", base.Idx))
	}
	base.alive = false
	for _, def := range base.in {
		if def != nil {
			removeOut(def, node)
		}
	}
	if graph.config.TraceOptimize {
		graph.config.Logger.Debug("retired node", "idx", base.Idx, "node", node.PrintSpec())
	}
}

// Nodes that stay live regardless of use count: phis carry loop
// state, outer nodes are owned by the surrounding code, memops have
// the side effect, and kept nodes produce a value consumed after
// the loop.

func dceKept(node NodeT) bool {
	switch node.(type) {
	case *LoopPhiNodeT, *OuterNodeT:
		return true
	}
	return node.Base().keep || isLoadOrStoreInLoop(node)
}

//----------------------------------------------------------------
// In-loop marking.  Costing only wants the nodes whose emitted
// instructions execute once per loop-body run.  Two passes over the
// schedule:
//
//   forward:  a node can NOT float before the loop if it is a phi or
//             an in-loop memop, or depends on such a node.
//   backward: a node is in the loop if it cannot float before it and
//             either has the side effect itself or feeds an in-loop
//             node.
//
// Everything else is loop invariant or only consumed after the loop,
// and does not count against the loop body.

func (graph *GraphT) markNodesInLoop() *intsets.Sparse {
	if !graph.scheduled {
		panic("marking nodes in loop without a schedule")
	}
	var notBefore, inLoop intsets.Sparse

	anchored := func(node NodeT) bool {
		return asLoopPhi(node) != nil || isLoadOrStoreInLoop(node)
	}

	for _, node := range graph.schedule {
		base := node.Base()
		mark := anchored(node)
		for i := 0; !mark && i < len(base.in); i++ {
			def := base.in[i]
			mark = def != nil && notBefore.Has(def.Base().Idx)
		}
		if mark {
			notBefore.Insert(base.Idx)
		}
	}

	for i := len(graph.schedule) - 1; 0 <= i; i-- {
		node := graph.schedule[i]
		base := node.Base()
		if !notBefore.Has(base.Idx) {
			continue
		}
		mark := anchored(node)
		for j := 0; !mark && j < base.Outs(); j++ {
			use := base.Out(j)
			// The phi backedge is consumed by the next iteration.
			mark = inLoop.Has(use.Base().Idx) ||
				(asLoopPhi(use) != nil && use.Base().In(2) == node)
		}
		if mark {
			inLoop.Insert(base.Idx)
		}
	}
	return &inLoop
}

// Total cost of one loop-body execution.  The sum does not depend on
// the particular schedule chosen, only on which nodes are in the loop.

func (graph *GraphT) Cost(analyzer *AnalyzerT) float32 {
	inLoop := graph.markNodesInLoop()
	var cost float32 = 0
	for _, node := range graph.schedule {
		if !inLoop.Has(node.Base().Idx) {
			continue
		}
		nodeCost := node.Cost(analyzer)
		cost += nodeCost
		if graph.config.TraceCost {
			graph.config.Logger.Debug("cost", "idx", node.Base().Idx,
				"node", node.PrintSpec(), "cost", nodeCost)
		}
	}
	if graph.config.TraceCost {
		graph.config.Logger.Debug("total cost", "cost", cost)
	}
	return cost
}
