// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Configuration for one vectorization attempt.  There are no global
// switches; a ConfigT is threaded into the graph constructor.

package slp

import (
	"log/slog"
	"runtime"

	"github.com/xyproto/env/v2"
	"golang.org/x/sys/cpu"
)

type ConfigT struct {
	// Detection distance, in iterations, for the store-to-load
	// forwarding failure check.  0 disables the check.
	StoreToLoadForwardDistance int

	// Widest vector the target supports, in bytes.
	MaxVectorWidth int

	TraceOptimize   bool
	TraceSchedule   bool
	TraceCost       bool
	TraceRejections bool
	TraceVerbose    bool

	Logger *slog.Logger
}

// Defaults can be adjusted from the environment, which is handy when
// chasing a vectorization decision in a larger run.

func DefaultConfig() ConfigT {
	config := ConfigT{
		StoreToLoadForwardDistance: env.Int("VECTORIZE_FORWARD_DISTANCE", 16),
		MaxVectorWidth:             env.Int("VECTORIZE_MAX_VECTOR_WIDTH", detectVectorWidth()),
		Logger:                     slog.Default(),
	}
	if env.Bool("VECTORIZE_TRACE") {
		config.TraceOptimize = true
		config.TraceSchedule = true
		config.TraceCost = true
		config.TraceRejections = true
	}
	if env.Bool("VECTORIZE_TRACE_VERBOSE") {
		config.TraceVerbose = true
	}
	return config
}

func detectVectorWidth() int {
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX512F {
			return 64
		}
		if cpu.X86.HasAVX2 {
			return 32
		}
		return 16 // SSE2 baseline
	case "arm64":
		return 16 // NEON
	}
	return 16
}
