// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Store-to-load forwarding failure detection.  Hardware forwards a
// store's data straight to a later load only when the load reads
// exactly the stored bytes.  A load that partially overlaps a recent
// store stalls until the store drains, and after vectorization the
// wider accesses can turn a loop that forwarded cleanly into one
// long stall chain.  Such schedules are rejected even when they are
// correct.
//
// The scheduled body is virtually unrolled far enough to cover the
// detection distance, every in-loop access contributing one memory
// region per virtual iteration.  Regions that provably cannot stall
// each other are skipped by sorting; the rest are checked pairwise.

package slp

import (
	"sort"
)

type memoryRegionT struct {
	ptr   PointerT
	load  bool
	order int // position in the virtually unrolled schedule
}

type regionAliasingT int

const (
	aliasDifferentGroup regionAliasingT = iota
	aliasBefore
	aliasExactOverlap
	aliasPartialOverlap
	aliasAfter
)

func regionAliasing(r1 PointerT, r2 PointerT) regionAliasingT {
	if cmpPointerGroup(r1, r2) != 0 {
		return aliasDifferentGroup
	}
	if r1.Con+r1.Size <= r2.Con {
		return aliasBefore
	}
	if r2.Con+r2.Size <= r1.Con {
		return aliasAfter
	}
	if r1.Con == r2.Con && r1.Size == r2.Size {
		return aliasExactOverlap
	}
	return aliasPartialOverlap
}

// Reports whether the scheduled body contains a load that partially
// overlaps an earlier store within the detection distance.  Distance
// zero disables the check.

func (graph *GraphT) HasStoreToLoadForwardingFailure(analyzer *AnalyzerT) bool {
	distance := graph.config.StoreToLoadForwardDistance
	if distance == 0 {
		return false
	}
	if !graph.scheduled {
		panic("forwarding check without a schedule")
	}
	loop := analyzer.Loop

	// One body run covers UnrolledCount original iterations, so this
	// many runs cover the distance.
	iterations := max(1, distance/loop.UnrolledCount)
	regions := []memoryRegionT{}
	for k := 0; k < iterations; k++ {
		ivOffset := k * loop.IvStride
		for position, node := range graph.schedule {
			if !isLoadOrStoreInLoop(node) {
				continue
			}
			ptr := memopPointer(node).WithIvOffset(ivOffset)
			if !ptr.IsValid() {
				continue // offset overflowed, skip the region
			}
			regions = append(regions,
				memoryRegionT{ptr, isLoadInLoop(node), k*len(graph.schedule) + position})
		}
	}

	stall, found := findForwardingStall(regions)
	if found && graph.config.TraceRejections {
		graph.config.Logger.Debug("store-to-load forwarding failure",
			"cons", []int{stall[0].ptr.Con, stall[1].ptr.Con},
			"sizes", []int{stall[0].ptr.Size, stall[1].ptr.Size})
	}
	return found
}

// Find a load positioned in trace order after a store it partially
// overlaps.  Sorting by group then position in memory means each
// region only has to be checked against the regions until the first
// one past it.

func findForwardingStall(regions []memoryRegionT) ([2]memoryRegionT, bool) {
	sort.Slice(regions, func(i int, j int) bool {
		r1, r2 := &regions[i], &regions[j]
		if cmp := cmpPointer(r1.ptr, r2.ptr); cmp != 0 {
			return cmp < 0
		}
		if r1.ptr.Size != r2.ptr.Size {
			return r1.ptr.Size < r2.ptr.Size
		}
		return r1.order < r2.order
	})

	for i := range regions {
		r1 := &regions[i]
		for j := i + 1; j < len(regions); j++ {
			r2 := &regions[j]
			aliasing := regionAliasing(r1.ptr, r2.ptr)
			if aliasing == aliasDifferentGroup || aliasing == aliasBefore {
				break // later regions start even further on
			}
			if aliasing != aliasPartialOverlap {
				continue // exact overlap forwards fine
			}
			if (r1.load && !r2.load && r2.order < r1.order) ||
				(!r1.load && r2.load && r1.order < r2.order) {
				return [2]memoryRegionT{*r1, *r2}, true
			}
		}
	}
	return [2]memoryRegionT{}, false
}
