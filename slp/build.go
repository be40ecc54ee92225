// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Building a transform graph from a loop and a pack selection.  The
// caller adds every in-loop instruction, either on its own or as a
// member of a pack, then seals the builder.  Sealing wires all the
// edges: values defined outside the loop are wrapped on demand, and
// pack inputs that are not themselves packs are synthesized as
// broadcasts, shift counts, or index vectors.

package slp

import (
	"fmt"

	"github.com/s48/vectorize/ir"
	"github.com/s48/vectorize/util"
)

type BuilderT struct {
	graph   *GraphT
	loop    *LoopT
	nodeMap map[*ir.NodeT]NodeT
	packs   map[NodeT][]*ir.NodeT

	// Synthesized pack inputs, shared between packs.
	broadcasts map[broadcastKeyT]NodeT

	extraDeps [][2]*ir.NodeT
	sealed    bool
}

type broadcastKindT int

const (
	broadcastReplicate broadcastKindT = iota
	broadcastShiftCount
	broadcastConvI2L
	broadcastPopulateIndex
)

type broadcastKeyT struct {
	def  *ir.NodeT
	vlen int
	elem ir.TypeT
	kind broadcastKindT
}

func MakeBuilder(config ConfigT, irGraph *ir.GraphT, loop *LoopT) *BuilderT {
	return &BuilderT{
		graph:      MakeGraph(config, irGraph),
		loop:       loop,
		nodeMap:    map[*ir.NodeT]NodeT{},
		packs:      map[NodeT][]*ir.NodeT{},
		broadcasts: map[broadcastKeyT]NodeT{},
	}
}

func (builder *BuilderT) checkOpen() {
	if builder.sealed {
		panic("adding to a sealed builder")
	}
}

func (builder *BuilderT) record(n *ir.NodeT, node NodeT) {
	if builder.nodeMap[n] != nil {
		panic("instruction added twice: " + n.String())
	}
	builder.nodeMap[n] = node
}

// An in-loop instruction that stays scalar.

func (builder *BuilderT) AddScalar(n *ir.NodeT) NodeT {
	builder.checkOpen()
	var node NodeT
	switch {
	case !builder.loop.InLoop(n):
		node = builder.graph.NewOuterNode(n)
	case n.Op == ir.Phi:
		node = builder.graph.NewLoopPhiNode(n)
	case n.IsMemop():
		node = builder.graph.NewMemopScalarNode(n)
	default:
		node = builder.graph.NewScalarNode(n)
	}
	builder.record(n, node)
	return node
}

// A pack of isomorphic instructions, one lane each.  The kind of
// vector node is determined by the members' opcode, except that a
// chain of accumulating operations becomes a reduction.

func (builder *BuilderT) AddPack(members []*ir.NodeT) NodeT {
	builder.checkOpen()
	if len(members) < 2 {
		panic("a pack needs at least two members")
	}
	first := members[0]
	isomorphic := func(member *ir.NodeT) bool {
		return member.Op == first.Op && member.Elem == first.Elem
	}
	if !util.Every(isomorphic, members[1:]) {
		panic("pack members are not isomorphic")
	}
	prototype := MakePrototype(first, len(members))
	var node NodeT
	switch {
	case first.IsStore():
		node = builder.graph.NewStoreVectorNode(prototype, packPointer(members))
	case first.IsLoad():
		node = builder.graph.NewLoadVectorNode(prototype, packPointer(members))
	case first.Op == ir.CmpI:
		node = builder.graph.NewCmpVectorNode(prototype)
	case first.Op == ir.Bool:
		node = builder.graph.NewBoolVectorNode(prototype, BoolTestT(first.Value))
	case isReductionChain(members):
		node = builder.graph.NewReductionVectorNode(prototype)
	default:
		node = builder.graph.NewElementWiseVectorNode(prototype, len(first.In))
	}
	for _, member := range members {
		builder.record(member, node)
	}
	builder.packs[node] = members
	return node
}

// A pack of long operations whose lanes are only needed at int
// width.  The optimizer lowers it to the long op plus a cast.

func (builder *BuilderT) AddLongToIntPack(members []*ir.NodeT) NodeT {
	builder.checkOpen()
	if len(members) < 2 {
		panic("a pack needs at least two members")
	}
	first := members[0]
	node := builder.graph.NewLongToIntVectorNode(MakePrototype(first, len(members)),
		len(first.In))
	for _, member := range members {
		builder.record(member, node)
	}
	builder.packs[node] = members
	return node
}

// An ordering constraint the instruction graph's memory edges do not
// carry, e.g. a load that must stay before a later store.

func (builder *BuilderT) AddMemoryDependency(n *ir.NodeT, earlier *ir.NodeT) {
	builder.checkOpen()
	builder.extraDeps = append(builder.extraDeps, [2]*ir.NodeT{n, earlier})
}

// The pointer of a memop pack spans all the members, which must be
// adjacent in memory, lowest address first.

func packPointer(members []*ir.NodeT) PointerT {
	ptr := MakePointer(members[0])
	if !ptr.IsValid() {
		panic("memop pack with no parsed address: " + members[0].String())
	}
	size := members[0].AccessSize()
	for i, member := range members {
		memberPtr := MakePointer(member)
		if cmpPointerGroup(ptr, memberPtr) != 0 || memberPtr.Con != ptr.Con+i*size {
			panic("memop pack members are not adjacent: " + member.String())
		}
	}
	ptr.Size = size * len(members)
	return ptr
}

// Accumulating chains look like element-wise ops; the chain through
// input zero is what marks them as reductions.

func isReductionChain(members []*ir.NodeT) bool {
	if _, found := ir.ReductionOpcode(members[0].Op); !found {
		return false
	}
	for i := 1; i < len(members); i++ {
		if len(members[i].In) < 2 || members[i].In[0] != members[i-1] {
			return false
		}
	}
	return true
}

//----------------------------------------------------------------
// Sealing.  All edges are wired here, once every instruction has its
// transform node.

func (builder *BuilderT) Seal() *GraphT {
	builder.checkOpen()
	builder.sealed = true

	// Synthesized inputs appended during wiring arrive fully wired.
	count := len(builder.graph.nodes)
	for i := 0; i < count; i++ {
		switch node := builder.graph.nodes[i].(type) {
		case *OuterNodeT:
		case *LoopPhiNodeT:
			InitReq(node, 0, builder.defFor(node.N.In[0]))
			InitReq(node, 2, builder.inLoopDef(node.N.In[1]))
		case *MemopScalarNodeT:
			builder.wireScalarInputs(node, node.N)
			builder.wireMemoryInput(node, node.N)
		case *ScalarNodeT:
			builder.wireScalarInputs(node, node.N)
		case *LoadVectorNodeT:
			builder.wireMemoryInputs(node)
		case *StoreVectorNodeT:
			InitReq(node, 0, builder.packInput(node, 0))
			builder.wireMemoryInputs(node)
		case *BoolVectorNodeT:
			cmp := builder.inLoopDef(builder.packs[node][0].In[0])
			if asCmpVector(cmp) == nil {
				panic("bool pack whose input is not a cmp pack")
			}
			InitReq(node, 0, cmp)
		case *ReductionVectorNodeT:
			InitReq(node, 0, builder.defFor(builder.packs[node][0].In[0]))
			InitReq(node, 1, builder.packInput(node, 1))
		default:
			for j := 0; j < node.Base().Req(); j++ {
				InitReq(node, j, builder.packInput(node, j))
			}
		}
	}
	for _, pair := range builder.extraDeps {
		use := builder.inLoopDef(pair[0])
		def := builder.inLoopDef(pair[1])
		if use != def {
			AddMemoryDependency(use, def)
		}
	}
	return builder.graph
}

// The transform node for a def, wrapping values defined outside the
// loop on first use.  In-loop defs must have been added explicitly.

func (builder *BuilderT) defFor(n *ir.NodeT) NodeT {
	if node, found := builder.nodeMap[n]; found {
		return node
	}
	if builder.loop.InLoop(n) {
		panic("in-loop instruction was never added: " + n.String())
	}
	outer := builder.graph.NewOuterNode(n)
	builder.nodeMap[n] = outer
	return outer
}

func (builder *BuilderT) inLoopDef(n *ir.NodeT) NodeT {
	node, found := builder.nodeMap[n]
	if !found {
		panic("in-loop instruction was never added: " + n.String())
	}
	return node
}

func (builder *BuilderT) wireScalarInputs(node NodeT, n *ir.NodeT) {
	for i, def := range n.In {
		if def != nil {
			InitReq(node, i, builder.defFor(def))
		}
	}
}

func (builder *BuilderT) wireMemoryInput(node NodeT, n *ir.NodeT) {
	if n.MemIn == nil {
		return
	}
	if def, found := builder.nodeMap[n.MemIn]; found && def != node {
		AddMemoryDependency(node, def)
	}
}

func (builder *BuilderT) wireMemoryInputs(node NodeT) {
	seen := map[NodeT]bool{}
	for _, member := range builder.packs[node] {
		if member.MemIn == nil {
			continue
		}
		if def, found := builder.nodeMap[member.MemIn]; found && def != node && !seen[def] {
			seen[def] = true
			AddMemoryDependency(node, def)
		}
	}
}

// Input i of a pack.  Either the members' inputs form a pack of their
// own, or they are all the same scalar (broadcast), or they walk up
// the induction variable (index vector).

func (builder *BuilderT) packInput(node NodeT, i int) NodeT {
	members := builder.packs[node]
	firstIn := members[0].In[i]

	if def, found := builder.nodeMap[firstIn]; found && asVector(def) != nil {
		for _, member := range members {
			if builder.nodeMap[member.In[i]] != def {
				panic(fmt.Sprintf("input %d of pack %s mixes packs", i, node.PrintSpec()))
			}
		}
		return def
	}

	uniform := true
	for _, member := range members[1:] {
		uniform = uniform && member.In[i] == firstIn
	}
	if uniform {
		return builder.broadcastInput(node, firstIn, i)
	}

	if iv := builder.indexSequence(members, i); iv != nil {
		return builder.synthesized(node, iv, broadcastPopulateIndex)
	}
	panic(fmt.Sprintf("input %d of pack %s is not a pack, a broadcast, or an index",
		i, node.PrintSpec()))
}

func (builder *BuilderT) broadcastInput(node NodeT, def *ir.NodeT, i int) NodeT {
	op := builder.packs[node][0].Op
	if (op == ir.LShiftI || op == ir.RShiftI) && i == 1 {
		return builder.synthesized(node, def, broadcastShiftCount)
	}
	return builder.synthesized(node, def, broadcastReplicate)
}

// Make (or reuse) a replicate, shift count, or index vector feeding
// a pack, including the widening conversion when an int scalar feeds
// long lanes.

func (builder *BuilderT) synthesized(node NodeT, def *ir.NodeT, kind broadcastKindT) NodeT {
	vector := asVector(node)
	key := broadcastKeyT{def, vector.VecLen, vector.Elem, kind}
	if made, found := builder.broadcasts[key]; found {
		return made
	}
	prototype := PrototypeT{Origin: def, Sopc: def.Op, VecLen: vector.VecLen, Elem: vector.Elem}
	input := builder.defFor(def)
	if kind == broadcastReplicate && vector.Elem == ir.Int64 && def.Elem != ir.Int64 {
		convKey := broadcastKeyT{def, vector.VecLen, vector.Elem, broadcastConvI2L}
		conv, found := builder.broadcasts[convKey]
		if !found {
			conv = builder.graph.NewConvI2LNode(def)
			InitReq(conv, 0, input)
			builder.broadcasts[convKey] = conv
		}
		input = conv
	}
	var made NodeT
	switch kind {
	case broadcastReplicate:
		made = builder.graph.NewReplicateNode(prototype)
	case broadcastShiftCount:
		made = builder.graph.NewShiftCountNode(prototype)
	case broadcastPopulateIndex:
		made = builder.graph.NewPopulateIndexNode(prototype)
	default:
		panic("unknown synthesized input kind")
	}
	InitReq(made, 0, input)
	builder.broadcasts[key] = made
	return made
}

// Recognize inputs iv, iv+1, ... iv+vlen-1, returning the iv.

func (builder *BuilderT) indexSequence(members []*ir.NodeT, i int) *ir.NodeT {
	iv := builder.loop.Iv
	if iv == nil {
		return nil
	}
	for lane, member := range members {
		def := member.In[i]
		if lane == 0 && def == iv {
			continue
		}
		if def.Op != ir.AddI || len(def.In) != 2 ||
			def.In[0] != iv ||
			def.In[1].Op != ir.ConI || def.In[1].Value != int64(lane) {
			return nil
		}
	}
	return iv
}
