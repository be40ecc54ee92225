// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Element types and opcodes for the scalar instruction graph that the
// vectorizer reads, and for the vector instructions it emits.

package ir

import (
	"fmt"
	"math"
)

type TypeT int

const (
	Int8 TypeT = iota
	Int16
	Int32
	Int64
	Float32
	Float64
)

var typeNames = [...]string{"i8", "i16", "i32", "i64", "f32", "f64"}

func (typ TypeT) String() string { return typeNames[typ] }

func (typ TypeT) ByteSize() int {
	switch typ {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	panic(fmt.Sprintf("unknown type %d", typ))
}

func (typ TypeT) IsFloat() bool {
	return typ == Float32 || typ == Float64
}

//----------------------------------------------------------------

type OpcodeT int

const (
	Nop OpcodeT = iota

	// Scalar operations.
	ConI
	Param
	Phi
	AddI
	SubI
	MulI
	AndI
	OrI
	XorI
	LShiftI
	RShiftI
	MinI
	MaxI
	ConvI2L
	AddF
	MulF
	CmpI
	Bool
	Load
	Store

	// Vector operations, produced only by the vectorizer.
	LoadVector
	StoreVector
	Replicate
	PopulateIndex
	ShiftCountV
	VectorMaskCmp
	VectorCastL2X
	AddV
	SubV
	MulV
	AndV
	OrV
	XorV
	LShiftV
	RShiftV
	MinV
	MaxV
	AddReductionV
	MulReductionV
	AndReductionV
	OrReductionV
	XorReductionV
	MinReductionV
	MaxReductionV
)

var opcodeNames = map[OpcodeT]string{
	Nop: "Nop", ConI: "ConI", Param: "Param", Phi: "Phi",
	AddI: "AddI", SubI: "SubI", MulI: "MulI", AndI: "AndI", OrI: "OrI",
	XorI: "XorI", LShiftI: "LShiftI", RShiftI: "RShiftI",
	MinI: "MinI", MaxI: "MaxI", ConvI2L: "ConvI2L",
	AddF: "AddF", MulF: "MulF", CmpI: "CmpI", Bool: "Bool",
	Load: "Load", Store: "Store",
	LoadVector: "LoadVector", StoreVector: "StoreVector",
	Replicate: "Replicate", PopulateIndex: "PopulateIndex",
	ShiftCountV: "ShiftCountV", VectorMaskCmp: "VectorMaskCmp",
	VectorCastL2X: "VectorCastL2X",
	AddV:          "AddV", SubV: "SubV", MulV: "MulV", AndV: "AndV",
	OrV: "OrV", XorV: "XorV", LShiftV: "LShiftV", RShiftV: "RShiftV",
	MinV: "MinV", MaxV: "MaxV",
	AddReductionV: "AddReductionV", MulReductionV: "MulReductionV",
	AndReductionV: "AndReductionV", OrReductionV: "OrReductionV",
	XorReductionV: "XorReductionV", MinReductionV: "MinReductionV",
	MaxReductionV: "MaxReductionV",
}

func (op OpcodeT) String() string {
	name := opcodeNames[op]
	if name == "" {
		return fmt.Sprintf("Opcode(%d)", int(op))
	}
	return name
}

//----------------------------------------------------------------
// Mapping scalar opcodes to their vector forms.  The element type is
// carried on the node, so integer and float scalar ops share vector
// opcodes.

var vectorOpcodes = map[OpcodeT]OpcodeT{
	AddI: AddV, SubI: SubV, MulI: MulV,
	AndI: AndV, OrI: OrV, XorI: XorV,
	LShiftI: LShiftV, RShiftI: RShiftV,
	MinI: MinV, MaxI: MaxV,
	AddF: AddV, MulF: MulV,
}

func VectorOpcode(scalar OpcodeT) (OpcodeT, bool) {
	vopc, found := vectorOpcodes[scalar]
	return vopc, found
}

var reductionOpcodes = map[OpcodeT]OpcodeT{
	AddI: AddReductionV, MulI: MulReductionV,
	AndI: AndReductionV, OrI: OrReductionV, XorI: XorReductionV,
	MinI: MinReductionV, MaxI: MaxReductionV,
	AddF: AddReductionV, MulF: MulReductionV,
}

func ReductionOpcode(scalar OpcodeT) (OpcodeT, bool) {
	ropc, found := reductionOpcodes[scalar]
	return ropc, found
}

// Floating-point add and mul reductions are not associative, so
// auto-vectorization must keep the scalar accumulation order for them.

func ReductionRequiresStrictOrder(op OpcodeT, elem TypeT) bool {
	switch op {
	case AddReductionV, MulReductionV:
		return elem.IsFloat()
	}
	return false
}

// The identity element for a reduction, used to seed the in-loop
// vector accumulator when the reduction is moved out of the loop.

func ReductionIdentity(scalar OpcodeT, elem TypeT) int64 {
	switch scalar {
	case AddI, AddF, OrI, XorI:
		return 0
	case MulI, MulF:
		return 1
	case AndI:
		return -1
	case MinI:
		return maxOfType(elem)
	case MaxI:
		return -maxOfType(elem) - 1
	}
	panic(fmt.Sprintf("no identity for reduction over %s", scalar))
}

func maxOfType(elem TypeT) int64 {
	switch elem {
	case Int8:
		return math.MaxInt8
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	case Int64:
		return math.MaxInt64
	}
	panic(fmt.Sprintf("no integer range for %s", elem))
}
