// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Shared fixtures.  The loops are all two-way unrolled bodies of
// simple array kernels, built the way the upstream analysis would
// hand them over: an ir graph, a LoopT, and a pack selection.

package slp

import (
	"log/slog"

	"github.com/s48/vectorize/ir"
)

func testConfig() ConfigT {
	return ConfigT{
		StoreToLoadForwardDistance: 16,
		MaxVectorWidth:             64,
		Logger:                     slog.Default(),
	}
}

// A fixed cost table so tests do not depend on the host CPU.

func testAnalyzer(loop *LoopT) *AnalyzerT {
	analyzer := MakeAnalyzer(loop)
	analyzer.Costs = MakeCostTable()
	return analyzer
}

//----------------------------------------------------------------

type loopFixtureT struct {
	irg     *ir.GraphT
	loop    *LoopT
	builder *BuilderT

	a, b, c    *ir.NodeT
	iv, ivNext *ir.NodeT
	loads      []*ir.NodeT
	adds       []*ir.NodeT
	stores     []*ir.NodeT
}

// The body of "for i { b[i] = src[loadElem + i] + c }" unrolled twice,
// over int64 elements.  src is b itself when loadFromB is set, which
// makes the loop loop-carried.

func makeStreamFixture(loadFromB bool, loadElem int) *loopFixtureT {
	fix := &loopFixtureT{irg: ir.MakeGraph()}
	irg := fix.irg
	fix.a = irg.NewParam("a", ir.Int64)
	fix.b = irg.NewParam("b", ir.Int64)
	fix.c = irg.NewParam("c", ir.Int64)
	src := fix.a
	if loadFromB {
		src = fix.b
	}

	fix.iv = irg.NewPhi(ir.Int64, irg.NewConI(0, ir.Int64), nil)
	fix.ivNext = irg.NewNode(ir.AddI, ir.Int64, fix.iv, irg.NewConI(2, ir.Int64))
	fix.iv.SetIn(1, fix.ivNext)

	for j := 0; j < 2; j++ {
		load := irg.NewLoad(ir.Int64, ir.AdrT{Base: src, Scale: 8, Con: 8 * (loadElem + j)})
		add := irg.NewNode(ir.AddI, ir.Int64, load, fix.c)
		store := irg.NewStore(ir.Int64, ir.AdrT{Base: fix.b, Scale: 8, Con: 8 * j}, add)
		fix.loads = append(fix.loads, load)
		fix.adds = append(fix.adds, add)
		fix.stores = append(fix.stores, store)
	}

	fix.loop = MakeLoop(fix.iv, 2, 2)
	fix.loop.AddBody(fix.ivNext)
	fix.loop.AddBody(fix.loads...)
	fix.loop.AddBody(fix.adds...)
	fix.loop.AddBody(fix.stores...)

	fix.builder = MakeBuilder(testConfig(), irg, fix.loop)
	return fix
}

// Add everything as packs and seal.

func (fix *loopFixtureT) buildPacked() *GraphT {
	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	fix.builder.AddPack(fix.loads)
	fix.builder.AddPack(fix.adds)
	fix.builder.AddPack(fix.stores)
	return fix.builder.Seal()
}

// Add everything scalar and seal, for baselines.

func (fix *loopFixtureT) buildScalar() *GraphT {
	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	for j := range fix.loads {
		fix.builder.AddScalar(fix.loads[j])
		fix.builder.AddScalar(fix.adds[j])
		fix.builder.AddScalar(fix.stores[j])
	}
	return fix.builder.Seal()
}

//----------------------------------------------------------------

type reductionFixtureT struct {
	irg     *ir.GraphT
	loop    *LoopT
	builder *BuilderT

	a, sInit   *ir.NodeT
	iv, ivNext *ir.NodeT
	phi        *ir.NodeT
	loads      []*ir.NodeT
	reductions []*ir.NodeT
}

// The body of "for i { s = op(s, a[i]) }" unrolled twice.

func makeReductionFixture(op ir.OpcodeT, elem ir.TypeT) *reductionFixtureT {
	fix := &reductionFixtureT{irg: ir.MakeGraph()}
	irg := fix.irg
	fix.a = irg.NewParam("a", elem)
	fix.sInit = irg.NewParam("s0", elem)

	fix.iv = irg.NewPhi(ir.Int64, irg.NewConI(0, ir.Int64), nil)
	fix.ivNext = irg.NewNode(ir.AddI, ir.Int64, fix.iv, irg.NewConI(2, ir.Int64))
	fix.iv.SetIn(1, fix.ivNext)

	fix.phi = irg.NewPhi(elem, fix.sInit, nil)
	size := elem.ByteSize()
	acc := fix.phi
	for j := 0; j < 2; j++ {
		load := irg.NewLoad(elem, ir.AdrT{Base: fix.a, Scale: size, Con: size * j})
		acc = irg.NewNode(op, elem, acc, load)
		fix.loads = append(fix.loads, load)
		fix.reductions = append(fix.reductions, acc)
	}
	fix.phi.SetIn(1, acc)

	fix.loop = MakeLoop(fix.iv, 2, 2)
	fix.loop.AddBody(fix.ivNext, fix.phi)
	fix.loop.AddBody(fix.loads...)
	fix.loop.AddBody(fix.reductions...)

	fix.builder = MakeBuilder(testConfig(), irg, fix.loop)
	return fix
}

func (fix *reductionFixtureT) buildPacked() *GraphT {
	fix.builder.AddScalar(fix.iv)
	fix.builder.AddScalar(fix.ivNext)
	fix.builder.AddScalar(fix.phi)
	fix.builder.AddPack(fix.loads)
	fix.builder.AddPack(fix.reductions)
	return fix.builder.Seal()
}

//----------------------------------------------------------------

// The emitted body in evaluation order: the ir node each scheduled
// transform node produced, skipping the ones that emit nothing.

func emittedSchedule(graph *GraphT) []*ir.NodeT {
	result := []*ir.NodeT{}
	for _, node := range graph.schedule {
		if emitted := graph.applyState.emitted[node.Base().Idx]; emitted != nil {
			result = append(result, emitted)
		}
	}
	return result
}
