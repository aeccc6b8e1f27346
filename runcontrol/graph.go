package runcontrol

import (
	"strings"

	rcerrors "github.com/twitter/runctl/common/errors"
)

const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // fully explored
)

// findCycle returns the nodes of one cycle in the graph given as adjacency
// lists, in edge order, or nil if the graph is acyclic.
func findCycle(edges [][]int) []int {
	colors := make([]int, len(edges))
	var path []int
	var visit func(n int) []int
	visit = func(n int) []int {
		colors[n] = gray
		path = append(path, n)
		for _, next := range edges[n] {
			switch colors[next] {
			case gray:
				// back edge: the cycle is the path suffix starting at next
				for i, p := range path {
					if p == next {
						return append([]int(nil), path[i:]...)
					}
				}
			case white:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		colors[n] = black
		return nil
	}
	for n := range edges {
		if colors[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// validateDependencies fails if the start or stop dependencies of workers form a cycle,
// since no worker of the cycle could ever become eligible.
func validateDependencies(workers []*Worker) error {
	start := make([][]int, len(workers))
	stop := make([][]int, len(workers))
	for i, w := range workers {
		start[i] = w.startDeps
		stop[i] = w.stopDeps
	}
	if c := findCycle(start); c != nil {
		return rcerrors.NewConfigurationError("start dependency cycle: %s", describeCycle(workers, c))
	}
	if c := findCycle(stop); c != nil {
		return rcerrors.NewConfigurationError("stop dependency cycle: %s", describeCycle(workers, c))
	}
	return nil
}

func describeCycle(workers []*Worker, cycle []int) string {
	ids := make([]string, 0, len(cycle)+1)
	for _, n := range cycle {
		ids = append(ids, workers[n].id)
	}
	ids = append(ids, workers[cycle[0]].id)
	return strings.Join(ids, " -> ")
}
