// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Linearizing the transform graph.  Scheduling succeeds exactly when
// the graph, with phi backedges ignored, is acyclic; every def then
// precedes all of its uses.  A cycle is not a bug: packing merges
// nodes, and a dependency into a pack from one of its own members
// comes out as a self-loop.  The answer for a cyclic graph is simply
// "no schedule", and the caller gives up on vectorizing the loop.
//
// The DFS is iterative with an explicit stack.  Graphs here are as
// big as the unrolled loop body, which can run to thousands of
// nodes, too deep to trust to the call stack.

package slp

import (
	"os"

	"golang.org/x/tools/container/intsets"

	"github.com/s48/vectorize/util"
)

func (graph *GraphT) Schedule() bool {
	if graph.scheduled {
		panic("scheduling a graph twice")
	}
	var preVisited, postVisited intsets.Sparse
	stack := &util.StackT[NodeT]{}
	schedule := make([]NodeT, 0, graph.AliveCount())

	for _, root := range graph.nodes {
		if !root.Base().IsAlive() || preVisited.Has(root.Base().Idx) {
			continue
		}
		preVisited.Insert(root.Base().Idx)
		stack.Push(root)
		for !stack.Empty() {
			node := stack.Top()
			def, cyclic := graph.nextUnvisitedInput(node, &preVisited, &postVisited)
			if cyclic {
				graph.traceScheduleFailure(stack)
				return false
			}
			if def != nil {
				preVisited.Insert(def.Base().Idx)
				stack.Push(def)
			} else {
				// All inputs placed, the node itself is next.
				stack.Pop()
				postVisited.Insert(node.Base().Idx)
				schedule = append(schedule, node)
			}
		}
	}
	graph.schedule = schedule
	graph.scheduled = true
	if graph.config.TraceSchedule {
		graph.config.Logger.Debug("scheduled graph", "nodes", len(schedule))
		if graph.config.TraceVerbose {
			graph.PrintSchedule()
		}
	}
	return true
}

// The next input edge the DFS should follow from node, or nil when
// all inputs are placed.  An input that has been entered but not left
// is on the DFS path below us, which closes a cycle.

func (graph *GraphT) nextUnvisitedInput(node NodeT,
	preVisited *intsets.Sparse, postVisited *intsets.Sparse) (NodeT, bool) {

	if !node.Base().HasReqOrDependency() {
		return nil, false
	}
	for _, def := range scheduleInputs(node) {
		if def == nil || !def.Base().IsAlive() {
			continue
		}
		idx := def.Base().Idx
		if !preVisited.Has(idx) {
			return def, false
		}
		if !postVisited.Has(idx) {
			return nil, true // cycle
		}
	}
	return nil, false
}

// The input edges scheduling respects.  A phi's backedge input is
// produced by the iteration before the one consuming it, so it is
// not an ordering constraint within one body.

func scheduleInputs(node NodeT) []NodeT {
	base := node.Base()
	if asLoopPhi(node) != nil {
		return base.in[:2]
	}
	return base.in
}

//----------------------------------------------------------------
// Failure reporting.  The DFS stack pins down one path into the
// cycle; the strongly connected components name every node involved.

func (graph *GraphT) traceScheduleFailure(stack *util.StackT[NodeT]) {
	if !graph.config.TraceRejections {
		return
	}
	logger := graph.config.Logger
	logger.Debug("no schedule: transform graph has a cycle")
	for i := 0; i < stack.Len(); i++ {
		node := stack.Ref(i)
		logger.Debug("  on path", "idx", node.Base().Idx, "node", node.PrintSpec())
	}
	alive := util.Filter(func(node NodeT) bool { return node.Base().IsAlive() }, graph.nodes)
	components := util.StronglyConnectedComponents(alive,
		func(node NodeT) []NodeT {
			return util.Filter(func(def NodeT) bool { return def != nil },
				scheduleInputs(node))
		})
	for _, component := range components {
		if len(component) < 2 {
			continue
		}
		logger.Debug("  cycle", "size", len(component))
		for _, node := range component {
			logger.Debug("    member", "idx", node.Base().Idx, "node", node.PrintSpec())
		}
	}
	if graph.config.TraceVerbose {
		graph.Print(os.Stdout)
	}
}
