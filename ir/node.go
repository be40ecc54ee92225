// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The instruction graph.  This is the vectorizer's view of the JIT's
// IR: enough structure to hold a counted loop body, to answer the
// opcode/operand/address queries the transform graph needs, and to
// receive the vector instructions that apply() emits.

package ir

import (
	"fmt"
)

// The memory regions accessed by loads and stores:
//   adr = base + invar + scale * iv + con
// 'base' is the array object, 'invar' an optional loop-invariant
// part, 'con' a constant byte offset.  'scale' is bytes per unit of
// the induction variable.

type AdrT struct {
	Base  *NodeT
	Invar *NodeT
	Scale int
	Con   int
}

type NodeT struct {
	Id     int
	Op     OpcodeT
	In     []*NodeT
	MemIn  *NodeT // memory state edge, threaded by the vectorizer
	Elem   TypeT
	VecLen int // 0 for scalar nodes
	Value  int64
	Adr    AdrT
	Name   string // params only, for debugging
}

func (node *NodeT) IsLoad() bool  { return node.Op == Load || node.Op == LoadVector }
func (node *NodeT) IsStore() bool { return node.Op == Store || node.Op == StoreVector }
func (node *NodeT) IsMemop() bool { return node.IsLoad() || node.IsStore() }

// The byte width of the memory region a memop touches.

func (node *NodeT) AccessSize() int {
	if !node.IsMemop() {
		panic("AccessSize on non-memop " + node.String())
	}
	size := node.Elem.ByteSize()
	if 0 < node.VecLen {
		size *= node.VecLen
	}
	return size
}

func (node *NodeT) SetIn(i int, def *NodeT) {
	node.In[i] = def
}

func (node *NodeT) String() string {
	return fmt.Sprintf("{%d %s}", node.Id, node.Op)
}

//----------------------------------------------------------------
// The graph just owns nodes and hands out ids.  Def/use bookkeeping
// lives in the transform graph; here plain input edges are enough.

type GraphT struct {
	Nodes []*NodeT
}

func MakeGraph() *GraphT {
	return &GraphT{}
}

func (graph *GraphT) NewNode(op OpcodeT, elem TypeT, in ...*NodeT) *NodeT {
	node := &NodeT{Id: len(graph.Nodes), Op: op, In: in, Elem: elem}
	graph.Nodes = append(graph.Nodes, node)
	return node
}

func (graph *GraphT) NewConI(value int64, elem TypeT) *NodeT {
	node := graph.NewNode(ConI, elem)
	node.Value = value
	return node
}

func (graph *GraphT) NewParam(name string, elem TypeT) *NodeT {
	node := graph.NewNode(Param, elem)
	node.Name = name
	return node
}

// A loop phi: in[0] is the pre-loop value, in[1] the backedge value.

func (graph *GraphT) NewPhi(elem TypeT, init *NodeT, backedge *NodeT) *NodeT {
	return graph.NewNode(Phi, elem, init, backedge)
}

func (graph *GraphT) NewLoad(elem TypeT, adr AdrT) *NodeT {
	node := graph.NewNode(Load, elem)
	node.Adr = adr
	return node
}

func (graph *GraphT) NewStore(elem TypeT, adr AdrT, value *NodeT) *NodeT {
	node := graph.NewNode(Store, elem, value)
	node.Adr = adr
	return node
}

func (graph *GraphT) NewVector(op OpcodeT, elem TypeT, vlen int, in ...*NodeT) *NodeT {
	node := graph.NewNode(op, elem, in...)
	node.VecLen = vlen
	return node
}
