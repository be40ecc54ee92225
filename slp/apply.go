// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Emitting the scheduled graph back into the instruction graph.
// Each node is applied exactly once, in schedule order, and records
// the instruction it produced so its uses can find it.  The memo is
// write-once: a second recording for the same node means the graph
// was applied twice, which corrupts the emitted code.

package slp

import (
	"fmt"

	"github.com/s48/vectorize/ir"
)

type ApplyResultT struct {
	Node   *ir.NodeT
	VecLen int
	Bytes  int
}

func makeScalarResult(node *ir.NodeT) ApplyResultT {
	return ApplyResultT{Node: node, VecLen: 1, Bytes: node.Elem.ByteSize()}
}

func makeVectorResult(node *ir.NodeT, vlen int, bytes int) ApplyResultT {
	return ApplyResultT{Node: node, VecLen: vlen, Bytes: bytes}
}

type ApplyStateT struct {
	irg     *ir.GraphT
	emitted []*ir.NodeT // indexed by node Idx

	// Current memory state per base object, threaded store to store.
	memory map[*ir.NodeT]*ir.NodeT
}

func (graph *GraphT) makeApplyState(loop *LoopT) *ApplyStateT {
	if !graph.scheduled {
		panic("applying a graph that has no schedule")
	}
	state := &ApplyStateT{
		irg:     graph.irg,
		emitted: make([]*ir.NodeT, len(graph.nodes)),
		memory:  map[*ir.NodeT]*ir.NodeT{},
	}
	for base, mem := range loop.MemoryInputs {
		state.memory[base] = mem
	}
	return state
}

func (state *ApplyStateT) IrGraph() *ir.GraphT { return state.irg }

func (state *ApplyStateT) Emitted(node NodeT) *ir.NodeT {
	result := state.emitted[node.Base().Idx]
	if result == nil {
		panic(fmt.Sprintf("node %d has not been emitted", node.Base().Idx))
	}
	return result
}

func (state *ApplyStateT) setEmitted(node NodeT, emitted *ir.NodeT) {
	idx := node.Base().Idx
	if state.emitted[idx] != nil {
		panic(fmt.Sprintf("node %d emitted twice", idx))
	}
	state.emitted[idx] = emitted
}

// The memory state a memop on base starts from.  A base never stored
// to through this state is still at its incoming state.

func (state *ApplyStateT) MemoryState(base *ir.NodeT) *ir.NodeT {
	if mem, found := state.memory[base]; found {
		return mem
	}
	return base
}

func (state *ApplyStateT) SetMemoryState(base *ir.NodeT, mem *ir.NodeT) {
	state.memory[base] = mem
}

//----------------------------------------------------------------

// Rewrite the instruction graph to match the transform graph.  After
// this the transform graph is spent.

func (graph *GraphT) Apply(loop *LoopT) {
	if graph.applied {
		panic("applying a graph twice")
	}
	graph.applied = true

	state := graph.makeApplyState(loop)
	for _, node := range graph.schedule {
		result := node.Apply(state)
		if result.Node != nil {
			state.setEmitted(node, result.Node)
		}
	}
	// Backedges could not be hooked up until their defs were emitted.
	for _, node := range graph.schedule {
		if phi := asLoopPhi(node); phi != nil {
			phi.ApplyCleanup(state)
		}
	}
	graph.applyState = state
}

// The memory state on base when the loop exits, for repointing memory
// uses after the loop.  Only available once the graph is applied.

func (graph *GraphT) OutgoingMemoryState(base *ir.NodeT) *ir.NodeT {
	if !graph.applied {
		panic("memory state of an unapplied graph")
	}
	return graph.applyState.MemoryState(base)
}
