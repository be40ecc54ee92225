// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package slp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s48/vectorize/ir"
)

func TestCostTableLookup(t *testing.T) {
	table := MakeCostTable()
	assert.Equal(t, float32(1), table.CostForScalar(ir.AddI))
	table.SetScalar(ir.MulI, 3)
	assert.Equal(t, float32(3), table.CostForScalar(ir.MulI))

	assert.Equal(t, float32(1), table.CostForVector(ir.AddV, 4, ir.Int32))
	table.SetVector(ir.AddV, 4, ir.Int32, 2)
	assert.Equal(t, float32(2), table.CostForVector(ir.AddV, 4, ir.Int32))
	// Other lane counts keep the default.
	assert.Equal(t, float32(1), table.CostForVector(ir.AddV, 8, ir.Int32))
}

// Strict-order reductions pay per lane, order-insensitive ones pay
// per tree level.

func TestReductionCosts(t *testing.T) {
	table := MakeCostTable()
	strict := table.CostForVectorReduction(ir.AddReductionV, 8, ir.Float64, true)
	relaxed := table.CostForVectorReduction(ir.AddReductionV, 8, ir.Int64, false)
	assert.Equal(t, float32(8), strict)
	assert.Equal(t, float32(4), relaxed)
	assert.Less(t, relaxed, strict)
}

// Loop-invariant setup (the broadcast of c and the constants) floats
// out of the loop and costs nothing per iteration.

func TestCostCountsOnlyLoopNodes(t *testing.T) {
	fix := makeStreamFixture(false, 0)
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	analyzer := testAnalyzer(fix.loop)

	// iv increment + vector load + vector add + vector store.
	assert.Equal(t, float32(4), graph.Cost(analyzer))

	inLoop := graph.markNodesInLoop()
	for _, node := range graph.Nodes() {
		switch node.(type) {
		case *ReplicateNodeT, *OuterNodeT:
			assert.False(t, inLoop.Has(node.Base().Idx), node.PrintSpec())
		case *LoadVectorNodeT, *StoreVectorNodeT:
			assert.True(t, inLoop.Has(node.Base().Idx), node.PrintSpec())
		}
	}
}

// The scalar rendition of the same body costs more than the packed
// one, which is the whole point.

func TestCostScalarVersusPacked(t *testing.T) {
	packed := makeStreamFixture(false, 0).buildPacked()
	scalar := makeStreamFixture(false, 0).buildScalar()
	require.True(t, packed.Schedule())
	require.True(t, scalar.Schedule())
	loop := MakeLoop(nil, 2, 2)
	analyzer := testAnalyzer(loop)

	// Scalar: iv increment plus two each of load, add, store.
	assert.Equal(t, float32(7), scalar.Cost(analyzer))
	assert.Less(t, packed.Cost(analyzer), scalar.Cost(analyzer))
}

// Cost reads the schedule and the stable indices, so the order of
// the arena itself cannot matter.

func TestCostIgnoresArenaOrder(t *testing.T) {
	fix := makeStreamFixture(false, 0)
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	analyzer := testAnalyzer(fix.loop)
	cost := graph.Cost(analyzer)

	for i, j := 0, len(graph.nodes)-1; i < j; i, j = i+1, j-1 {
		graph.nodes[i], graph.nodes[j] = graph.nodes[j], graph.nodes[i]
	}
	assert.Equal(t, cost, graph.Cost(analyzer))
}

func TestZeroCostOpcodes(t *testing.T) {
	irg := ir.MakeGraph()
	a := irg.NewParam("a", ir.Int64)
	loop := MakeLoop(nil, 1, 1)
	analyzer := testAnalyzer(loop)
	cmp := irg.NewNode(ir.CmpI, ir.Int64, a, a)
	assert.True(t, analyzer.HasZeroCost(cmp))
	assert.False(t, analyzer.HasZeroCost(a))
}
