// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Run a scheduled loop body as a program, for testing.  Scalar values
// are int64, vector values are []int64 lanes, memory is an int64
// array per base object.  Only the integer subset is evaluable; the
// vectorizer's correctness tests compare a scalar body against the
// vectorized body it was rewritten into.

package ir

import (
	"fmt"
)

type EnvT struct {
	IV     int64 // induction variable for the current iteration
	Memory map[*NodeT][]int64
	values map[*NodeT]any
}

func MakeEnv() *EnvT {
	return &EnvT{Memory: map[*NodeT][]int64{}, values: map[*NodeT]any{}}
}

// Phi and Param values are set from outside: params once, phis before
// each iteration with the previous iteration's backedge value.

func (env *EnvT) Set(node *NodeT, value any) {
	env.values[node] = value
}

func (env *EnvT) Value(node *NodeT) any {
	value, found := env.values[node]
	if !found {
		panic("no value for " + node.String())
	}
	return value
}

func (env *EnvT) IntValue(node *NodeT) int64 {
	switch value := env.Value(node).(type) {
	case int64:
		return value
	}
	panic("node value is not an int64: " + node.String())
}

func (env *EnvT) LaneValues(node *NodeT) []int64 {
	switch value := env.Value(node).(type) {
	case []int64:
		return value
	}
	panic("node value is not lanes: " + node.String())
}

//----------------------------------------------------------------

// Evaluate one pass over a scheduled body.  Loads and stores use the
// element index derived from the node's address and env.IV.

func Evaluate(schedule []*NodeT, env *EnvT) {
	for _, node := range schedule {
		evalNode(node, env)
	}
}

func evalNode(node *NodeT, env *EnvT) {
	switch node.Op {
	case ConI:
		env.Set(node, node.Value)
	case Param, Phi:
		env.Value(node) // must be preset
	case AddI, SubI, MulI, AndI, OrI, XorI, LShiftI, RShiftI, MinI, MaxI:
		x := env.IntValue(node.In[0])
		y := env.IntValue(node.In[1])
		env.Set(node, intOp(node.Op, x, y))
	case ConvI2L:
		env.Set(node, env.IntValue(node.In[0]))
	case Load:
		array, index := memRef(node, env)
		env.Set(node, array[index])
	case Store:
		array, index := memRef(node, env)
		array[index] = env.IntValue(node.In[0])
	case Replicate, ShiftCountV:
		lanes := make([]int64, node.VecLen)
		value := env.IntValue(node.In[0])
		for i := range lanes {
			lanes[i] = value
		}
		env.Set(node, lanes)
	case PopulateIndex:
		lanes := make([]int64, node.VecLen)
		value := env.IntValue(node.In[0])
		for i := range lanes {
			lanes[i] = value + int64(i)
		}
		env.Set(node, lanes)
	case LoadVector:
		array, index := memRef(node, env)
		lanes := make([]int64, node.VecLen)
		copy(lanes, array[index:index+int64(node.VecLen)])
		env.Set(node, lanes)
	case StoreVector:
		array, index := memRef(node, env)
		copy(array[index:index+int64(node.VecLen)], env.LaneValues(node.In[0]))
	case AddV, SubV, MulV, AndV, OrV, XorV, MinV, MaxV:
		x := env.LaneValues(node.In[0])
		y := env.LaneValues(node.In[1])
		lanes := make([]int64, node.VecLen)
		for i := range lanes {
			lanes[i] = intOp(laneOpcode(node.Op), x[i], y[i])
		}
		env.Set(node, lanes)
	case LShiftV, RShiftV:
		x := env.LaneValues(node.In[0])
		count := env.LaneValues(node.In[1])
		lanes := make([]int64, node.VecLen)
		for i := range lanes {
			lanes[i] = intOp(laneOpcode(node.Op), x[i], count[i])
		}
		env.Set(node, lanes)
	case VectorCastL2X:
		x := env.LaneValues(node.In[0])
		lanes := make([]int64, node.VecLen)
		for i := range lanes {
			lanes[i] = int64(int32(x[i]))
		}
		env.Set(node, lanes)
	case AddReductionV, MulReductionV, AndReductionV, OrReductionV,
		XorReductionV, MinReductionV, MaxReductionV:
		result := env.IntValue(node.In[0])
		for _, lane := range env.LaneValues(node.In[1]) {
			result = intOp(reductionLaneOpcode(node.Op), result, lane)
		}
		env.Set(node, result)
	default:
		panic(fmt.Sprintf("cannot evaluate %s", node))
	}
}

func intOp(op OpcodeT, x int64, y int64) int64 {
	switch op {
	case AddI:
		return x + y
	case SubI:
		return x - y
	case MulI:
		return x * y
	case AndI:
		return x & y
	case OrI:
		return x | y
	case XorI:
		return x ^ y
	case LShiftI:
		return x << uint64(y&63)
	case RShiftI:
		return x >> uint64(y&63)
	case MinI:
		return min(x, y)
	case MaxI:
		return max(x, y)
	}
	panic(fmt.Sprintf("no integer evaluation for %s", op))
}

func laneOpcode(op OpcodeT) OpcodeT {
	switch op {
	case AddV:
		return AddI
	case SubV:
		return SubI
	case MulV:
		return MulI
	case AndV:
		return AndI
	case OrV:
		return OrI
	case XorV:
		return XorI
	case LShiftV:
		return LShiftI
	case RShiftV:
		return RShiftI
	case MinV:
		return MinI
	case MaxV:
		return MaxI
	}
	panic(fmt.Sprintf("no lane opcode for %s", op))
}

func reductionLaneOpcode(op OpcodeT) OpcodeT {
	switch op {
	case AddReductionV:
		return AddI
	case MulReductionV:
		return MulI
	case AndReductionV:
		return AndI
	case OrReductionV:
		return OrI
	case XorReductionV:
		return XorI
	case MinReductionV:
		return MinI
	case MaxReductionV:
		return MaxI
	}
	panic(fmt.Sprintf("no lane opcode for reduction %s", op))
}

// The element index of a memop at the current induction variable.

func memRef(node *NodeT, env *EnvT) ([]int64, int64) {
	adr := node.Adr
	array, found := env.Memory[adr.Base]
	if !found {
		panic("no memory for base " + adr.Base.String())
	}
	byteOffset := int64(adr.Scale)*env.IV + int64(adr.Con)
	if adr.Invar != nil {
		byteOffset += env.IntValue(adr.Invar)
	}
	elemSize := int64(node.Elem.ByteSize())
	if byteOffset%elemSize != 0 {
		panic(fmt.Sprintf("misaligned access at byte %d for %s", byteOffset, node))
	}
	return array, byteOffset / elemSize
}
