// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package slp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s48/vectorize/ir"
)

// A pack nothing uses disappears; loads, stores, and phis stay even
// when unused.

func TestDeadCodeCollection(t *testing.T) {
	fix := makeStreamFixture(false, 0)
	irg := fix.irg
	d := irg.NewParam("d", ir.Int64)
	muls := []*ir.NodeT{}
	for j := 0; j < 2; j++ {
		muls = append(muls, irg.NewNode(ir.MulI, ir.Int64, fix.loads[j], d))
	}
	fix.loop.AddBody(muls...)

	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	fix.builder.AddPack(fix.loads)
	fix.builder.AddPack(fix.adds)
	mulNode := fix.builder.AddPack(muls)
	storeNode := fix.builder.AddPack(fix.stores)
	graph := fix.builder.Seal()

	before := graph.AliveCount()
	graph.Optimize(testAnalyzer(fix.loop))

	assert.False(t, mulNode.Base().IsAlive())
	assert.True(t, storeNode.Base().IsAlive())
	// The mul pack and the broadcast only it used are both gone.
	assert.Equal(t, before-2, graph.AliveCount())

	// The optimizer is a fixpoint: a second run changes nothing.
	after := graph.AliveCount()
	graph.Optimize(testAnalyzer(fix.loop))
	assert.Equal(t, after, graph.AliveCount())
}

func TestReductionHoisting(t *testing.T) {
	fix := makeReductionFixture(ir.AddI, ir.Int64)
	graph := fix.buildPacked()
	analyzer := testAnalyzer(fix.loop)

	var phiNode *LoopPhiNodeT
	var oldReduction *ReductionVectorNodeT
	for _, node := range graph.Nodes() {
		if phi := asLoopPhi(node); phi != nil && phi.N == fix.phi {
			phiNode = phi
		}
		if red := asReductionVector(node); red != nil {
			oldReduction = red
		}
	}
	require.NotNil(t, phiNode)
	require.NotNil(t, oldReduction)

	graph.Optimize(analyzer)

	// The accumulator is now a vector: replicated identity in, an
	// element-wise add around the loop.
	require.IsType(t, &ReplicateNodeT{}, phiNode.In(0))
	identity := asOuter(phiNode.In(0).Base().In(0))
	require.NotNil(t, identity)
	assert.Equal(t, int64(0), identity.N.Value)
	vectorAdd, isAdd := phiNode.In(2).(*ElementWiseVectorNodeT)
	require.True(t, isAdd)
	assert.Equal(t, NodeT(phiNode), vectorAdd.In(0))
	assert.Equal(t, NodeT(vectorAdd), UniqueOut(phiNode))

	// The old in-loop reduction is dead; the surviving one folds the
	// accumulator with the original init, after the loop.
	assert.False(t, oldReduction.Base().IsAlive())
	var final *ReductionVectorNodeT
	for _, node := range graph.Nodes() {
		if red := asReductionVector(node); red != nil && red.Base().IsAlive() {
			final = red
		}
	}
	require.NotNil(t, final)
	assert.Same(t, fix.sInit, final.In(0).(*OuterNodeT).N)
	assert.Equal(t, NodeT(vectorAdd), final.In(1))

	require.True(t, graph.Schedule())
	inLoop := graph.markNodesInLoop()
	assert.False(t, inLoop.Has(final.Base().Idx))
	assert.True(t, inLoop.Has(vectorAdd.Base().Idx))

	// In loop: the iv increment, the vector load, the vector add.
	assert.Equal(t, float32(3), graph.Cost(analyzer))
}

// A second in-loop reader of the scalar accumulator pins the chain:
// turning the phi into a vector would hand that reader lane sums
// instead of the running total.

func TestReductionWithReadAccumulatorStaysPut(t *testing.T) {
	fix := makeReductionFixture(ir.AddI, ir.Int64)
	snapshot := fix.irg.NewStore(ir.Int64, ir.AdrT{Base: fix.a, Scale: 8, Con: 64}, fix.phi)
	fix.loop.AddBody(snapshot)

	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	phiNode := fix.builder.AddScalar(fix.phi)
	fix.builder.AddPack(fix.loads)
	fix.builder.AddPack(fix.reductions)
	fix.builder.AddScalar(snapshot)
	graph := fix.builder.Seal()

	graph.Optimize(testAnalyzer(fix.loop))

	// The phi still carries the scalar init and both of its readers.
	require.IsType(t, &OuterNodeT{}, phiNode.Base().In(0))
	assert.Equal(t, 2, phiNode.Base().Outs())
	reductions := 0
	for _, node := range graph.Nodes() {
		if red := asReductionVector(node); red != nil && red.Base().IsAlive() {
			reductions += 1
		}
	}
	assert.Equal(t, 1, reductions)
}

// Same with a reader of the chain head, the end-of-iteration total.

func TestReductionWithReadHeadStaysPut(t *testing.T) {
	fix := makeReductionFixture(ir.AddI, ir.Int64)
	snapshot := fix.irg.NewStore(ir.Int64, ir.AdrT{Base: fix.a, Scale: 8, Con: 64},
		fix.reductions[1])
	fix.loop.AddBody(snapshot)

	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	phiNode := fix.builder.AddScalar(fix.phi)
	fix.builder.AddPack(fix.loads)
	redNode := fix.builder.AddPack(fix.reductions)
	fix.builder.AddScalar(snapshot)
	graph := fix.builder.Seal()

	graph.Optimize(testAnalyzer(fix.loop))

	require.IsType(t, &OuterNodeT{}, phiNode.Base().In(0))
	assert.True(t, redNode.Base().IsAlive())
	assert.Equal(t, 2, redNode.Base().Outs())
}

// Float add is order-sensitive: the chain must stay in the loop.

func TestStrictOrderReductionStaysPut(t *testing.T) {
	fix := makeReductionFixture(ir.AddF, ir.Float64)
	graph := fix.buildPacked()
	graph.Optimize(testAnalyzer(fix.loop))

	reductions := 0
	for _, node := range graph.Nodes() {
		if red := asReductionVector(node); red != nil && red.Base().IsAlive() {
			reductions += 1
			assert.True(t, red.RequiresStrictOrder())
		}
	}
	assert.Equal(t, 1, reductions)
}

func TestLongToIntLowering(t *testing.T) {
	irg := ir.MakeGraph()
	a := irg.NewParam("a", ir.Int32)
	c := irg.NewParam("c", ir.Int32)
	iv := irg.NewPhi(ir.Int64, irg.NewConI(0, ir.Int64), nil)
	ivNext := irg.NewNode(ir.AddI, ir.Int64, iv, irg.NewConI(2, ir.Int64))
	iv.SetIn(1, ivNext)

	loads, muls, stores := []*ir.NodeT{}, []*ir.NodeT{}, []*ir.NodeT{}
	for j := 0; j < 2; j++ {
		load := irg.NewLoad(ir.Int32, ir.AdrT{Base: a, Scale: 4, Con: 4 * j})
		mul := irg.NewNode(ir.MulI, ir.Int32, load, c)
		loads = append(loads, load)
		muls = append(muls, mul)
		stores = append(stores, irg.NewStore(ir.Int32, ir.AdrT{Base: a, Scale: 4, Con: 4 * j}, mul))
	}
	loop := MakeLoop(iv, 2, 2)
	loop.AddBody(ivNext)
	loop.AddBody(loads...)
	loop.AddBody(muls...)
	loop.AddBody(stores...)

	builder := MakeBuilder(testConfig(), irg, loop)
	builder.AddScalar(iv)
	builder.AddScalar(ivNext)
	builder.AddPack(loads)
	mulNode := builder.AddLongToIntPack(muls)
	storeNode := builder.AddPack(stores)
	graph := builder.Seal()

	require.IsType(t, &LongToIntVectorNodeT{}, mulNode)
	graph.Optimize(testAnalyzer(loop))

	assert.False(t, mulNode.Base().IsAlive())
	cast, isCast := storeNode.Base().In(0).(*VectorCastNodeT)
	require.True(t, isCast)
	assert.Equal(t, ir.VectorCastL2X, cast.Vopc)
	longOp, isLong := cast.In(0).(*ElementWiseVectorNodeT)
	require.True(t, isLong)
	assert.Equal(t, ir.Int64, longOp.Elem)
	assert.Equal(t, ir.MulV, longOp.Vopc)
}
