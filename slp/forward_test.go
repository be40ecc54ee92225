// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package slp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s48/vectorize/ir"
)

func TestRegionAliasing(t *testing.T) {
	irg := ir.MakeGraph()
	a := irg.NewParam("a", ir.Int64)
	b := irg.NewParam("b", ir.Int64)
	at := func(base *ir.NodeT, con int) PointerT {
		return MakePointer(irg.NewLoad(ir.Int64, ir.AdrT{Base: base, Scale: 8, Con: con}))
	}

	assert.Equal(t, aliasDifferentGroup, regionAliasing(at(a, 0), at(b, 0)))
	assert.Equal(t, aliasBefore, regionAliasing(at(a, 0), at(a, 8)))
	assert.Equal(t, aliasAfter, regionAliasing(at(a, 8), at(a, 0)))
	assert.Equal(t, aliasExactOverlap, regionAliasing(at(a, 8), at(a, 8)))
	assert.Equal(t, aliasPartialOverlap, regionAliasing(at(a, 4), at(a, 8)))

	// Same start, different widths.
	wide := at(a, 8)
	wide.Size = 16
	assert.Equal(t, aliasPartialOverlap, regionAliasing(wide, at(a, 8)))
}

// A load partially overlapping an earlier store stalls; the same
// regions with the order or the roles flipped do not.

func TestForwardingStallPairs(t *testing.T) {
	irg := ir.MakeGraph()
	a := irg.NewParam("a", ir.Int64)
	region := func(con int, size int, load bool, order int) memoryRegionT {
		ptr := MakePointer(irg.NewLoad(ir.Int64, ir.AdrT{Base: a, Scale: 8, Con: con}))
		ptr.Size = size
		return memoryRegionT{ptr, load, order}
	}
	stalls := func(regions ...memoryRegionT) bool {
		_, found := findForwardingStall(regions)
		return found
	}

	// Store [0,8) then load [4,12): partial overlap, load after store.
	assert.True(t, stalls(region(0, 8, false, 0), region(4, 8, true, 1)))
	// The load coming first is fine.
	assert.False(t, stalls(region(4, 8, true, 0), region(0, 8, false, 1)))
	// So is an exact match, in either order.
	assert.False(t, stalls(region(0, 8, false, 0), region(0, 8, true, 1)))
	assert.False(t, stalls(region(0, 8, true, 0), region(0, 8, false, 1)))
	// Disjoint regions never stall.
	assert.False(t, stalls(region(0, 8, false, 0), region(8, 8, true, 1)))
	// Two loads or two stores never stall.
	assert.False(t, stalls(region(0, 8, true, 0), region(4, 8, true, 1)))
	assert.False(t, stalls(region(0, 8, false, 0), region(4, 8, false, 1)))
}

// b[i] = b[i-2] + c packed two wide: each vector load reads exactly
// the bytes a vector store wrote two (virtual) iterations earlier.
// Forwarding works, the schedule is accepted.

func TestForwardingExactDistance(t *testing.T) {
	fix := makeStreamFixture(true, -2)
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	assert.False(t, graph.HasStoreToLoadForwardingFailure(testAnalyzer(fix.loop)))
}

// b[i] = b[i-3] + c packed two wide: the odd distance means each
// vector load straddles two earlier vector stores.  Every load would
// stall, so the schedule is vetoed.

func TestForwardingPartialOverlap(t *testing.T) {
	fix := makeStreamFixture(true, -3)
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	assert.True(t, graph.HasStoreToLoadForwardingFailure(testAnalyzer(fix.loop)))
}

// The same distance-3 loop left scalar has only element-sized
// accesses, which line up exactly.

func TestForwardingScalarBodyOk(t *testing.T) {
	fix := makeStreamFixture(true, -3)
	graph := fix.buildScalar()
	require.True(t, graph.Schedule())
	assert.False(t, graph.HasStoreToLoadForwardingFailure(testAnalyzer(fix.loop)))
}

// Distance zero turns the check off entirely.

func TestForwardingDisabled(t *testing.T) {
	fix := makeStreamFixture(true, -3)
	fix.builder.graph.config.StoreToLoadForwardDistance = 0
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	assert.False(t, graph.HasStoreToLoadForwardingFailure(testAnalyzer(fix.loop)))
}

// Stores to one array never stall loads from another.

func TestForwardingDifferentBases(t *testing.T) {
	fix := makeStreamFixture(false, -3)
	graph := fix.buildPacked()
	require.True(t, graph.Schedule())
	assert.False(t, graph.HasStoreToLoadForwardingFailure(testAnalyzer(fix.loop)))
}
