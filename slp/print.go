// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Printing transform graphs, for debugging.

package slp

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func (graph *GraphT) Print(out io.Writer) {
	fmt.Fprintf(out, "transform graph, %d nodes (%d alive)\n",
		len(graph.nodes), graph.AliveCount())
	for _, node := range graph.nodes {
		if node.Base().IsAlive() {
			fmt.Fprintln(out, nodeLine(node))
		}
	}
}

func (graph *GraphT) PrintSchedule() {
	graph.PrintScheduleTo(os.Stdout)
}

func (graph *GraphT) PrintScheduleTo(out io.Writer) {
	fmt.Fprintf(out, "schedule, %d nodes\n", len(graph.ScheduledNodes()))
	for _, node := range graph.ScheduledNodes() {
		fmt.Fprintln(out, nodeLine(node))
	}
}

func nodeLine(node NodeT) string {
	base := node.Base()
	line := fmt.Sprintf("%4d %-18s %s", base.Idx, node.Name(), node.PrintSpec())
	ins := []string{}
	for i, def := range base.in {
		tag := ""
		if base.Req() <= i {
			tag = "mem "
		}
		if def == nil {
			ins = append(ins, tag+"_")
		} else {
			ins = append(ins, fmt.Sprintf("%s%d", tag, def.Base().Idx))
		}
	}
	if 0 < len(ins) {
		line += " <- " + strings.Join(ins, " ")
	}
	return line
}
