// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Code to find the strongly connected components of a graph using
// Kosaraju's algorithm.  The scheduler uses this to report which
// nodes form a cycle when linearization fails.

package util

// inputs: nodes in some graph
// edges: returns the nodes that a node has an edge to
// Returns the strongly connected components in topological order.

func StronglyConnectedComponents[K comparable](inputs []K, edges func(K) []K) [][]K {
	nodes := make([]*sccNodeT, len(inputs))
	lookup := map[K]*sccNodeT{}
	for i, input := range inputs {
		nodes[i] = &sccNodeT{index: i}
		lookup[input] = nodes[i]
	}
	for i, parent := range inputs {
		parentNode := nodes[i]
		for _, child := range edges(parent) {
			childNode := lookup[child]
			if childNode == nil {
				continue // edge leaves the node set
			}
			parentNode.children = append(parentNode.children, childNode)
			childNode.parents = append(childNode.parents, parentNode)
		}
	}
	order := make([]*sccNodeT, 0, len(nodes))
	for _, node := range nodes {
		sccPostorder(node, false, func(n *sccNodeT) { order = append(order, n) })
	}
	for _, node := range nodes {
		node.seen = false
	}
	result := [][]K{}
	for i := len(order) - 1; 0 <= i; i-- {
		component := []K{}
		sccPostorder(order[i], true,
			func(n *sccNodeT) { component = append(component, inputs[n.index]) })
		if 0 < len(component) {
			result = append(result, component)
		}
	}
	return result
}

type sccNodeT struct {
	index    int // index of the corresponding input node
	seen     bool
	children []*sccNodeT
	parents  []*sccNodeT
}

func sccPostorder(node *sccNodeT, up bool, visit func(*sccNodeT)) {
	if node.seen {
		return
	}
	node.seen = true
	next := node.children
	if up {
		next = node.parents
	}
	for _, n := range next {
		sccPostorder(n, up, visit)
	}
	visit(node)
}
