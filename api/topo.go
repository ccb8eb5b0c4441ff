package api

import (
	"context"
	"fmt"

	"github.com/evalgo/rangedb/store"
)

// EnvironmentTopologicalSort first DFS-walks the primary graph from env to
// collect every non-ENVIRONMENT node reachable from it, then runs a
// cycle-detecting topological sort (Kahn's algorithm, grounded on this
// codebase's graph/dag.go) on the dependency graph restricted to those
// nodes. A cycle among them is reported as ErrGraphCycle.
func (a *API) EnvironmentTopologicalSort(ctx context.Context, env string) ([]string, error) {
	nodes, err := a.collectEnvironmentNodes(ctx, env)
	if err != nil {
		return nil, err
	}
	return a.topoSortDependency(ctx, nodes)
}

func (a *API) collectEnvironmentNodes(ctx context.Context, env string) ([]string, error) {
	g := a.primary()
	var nodes []string
	visited := map[string]bool{}
	var walk func(name string) error
	walk = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true

		typ, err := g.Get(ctx, name).Type(ctx)
		if err != nil {
			return err
		}
		if typ != TypeEnvironment {
			ok, err := visible(ctx, a.coord, g, name)
			if err != nil {
				return err
			}
			if ok {
				nodes = append(nodes, name)
			}
		}

		children, err := g.Get(ctx, name).Edges(ctx, true, memberLabel)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(env); err != nil {
		return nil, err
	}
	return nodes, nil
}

// topoSortDependency runs Kahn's algorithm over the dependency graph's
// edges restricted to nodes, returning an error wrapping ErrGraphCycle if
// a cycle prevents a full ordering.
func (a *API) topoSortDependency(ctx context.Context, nodes []string) ([]string, error) {
	g := a.dependency()
	inNodes := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inNodes[n] = true
	}

	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}

	// Mirror graph/dag.go's GetExecutionOrder: an edge n -> d means "n
	// depends on d", so d must be ordered before n. adjacency therefore
	// runs from the dependency to the dependent, and inDegree counts how
	// many unresolved dependencies a node still has.
	for _, n := range nodes {
		deps, err := g.Get(ctx, n).Edges(ctx, true, dependencyLabel)
		if err != nil && err != store.ErrNodeNotFound {
			return nil, err
		}
		for _, d := range deps {
			if !inNodes[d] {
				continue
			}
			adjacency[d] = append(adjacency[d], n)
			inDegree[n]++
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		for _, dep := range adjacency[cur] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: dependency graph restricted to %d nodes has a cycle", ErrGraphCycle, len(nodes))
	}
	return order, nil
}
