package api

import (
	"context"
	"sort"

	"github.com/evalgo/rangedb/lang"
	"github.com/evalgo/rangedb/result"
	"github.com/evalgo/rangedb/store"
)

// AllEnvironments returns every ENVIRONMENT-typed node in the primary
// graph, sorted. Environments are roots: nothing contains them, so they
// are found by scanning node types directly rather than by a membership
// walk.
func (a *API) AllEnvironments(ctx context.Context) ([]string, error) {
	return a.allEnvironments(ctx)
}

func (a *API) allEnvironments(ctx context.Context) ([]string, error) {
	g := a.primary()
	names, err := g.AllNames(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		typ, err := g.Get(ctx, n).Type(ctx)
		if err != nil {
			return nil, err
		}
		if typ != TypeEnvironment {
			continue
		}
		ok, err := visible(ctx, a.coord, g, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AllClusters returns every CLUSTER-typed node reachable by forward
// membership edges from env, sorted. env may be empty to search every
// environment in the primary graph. A cluster detached from its
// environment (but not yet removed) is reachable from nothing and so is
// correctly excluded.
func (a *API) AllClusters(ctx context.Context, env string) ([]string, error) {
	return a.enumerateByMembership(ctx, env, TypeCluster)
}

// AllHosts returns every HOST-typed node reachable by forward membership
// edges from env, sorted. env may be empty to search every environment.
func (a *API) AllHosts(ctx context.Context, env string) ([]string, error) {
	return a.enumerateByMembership(ctx, env, TypeHost)
}

// envRoots returns the environment node names to walk membership edges
// from: just env itself if given, otherwise every environment in the
// graph.
func (a *API) envRoots(ctx context.Context, env string) ([]string, error) {
	if env != "" {
		return []string{env}, nil
	}
	return a.allEnvironments(ctx)
}

// enumerateByMembership walks forward ("member") edges from env's roots
// and returns every reachable, currently visible node of nodeType,
// sorted. This is the membership-walk counterpart of markReachable, used
// so that listings reflect the graph's actual containment structure
// rather than a node's name.
func (a *API) enumerateByMembership(ctx context.Context, env, nodeType string) ([]string, error) {
	g := a.primary()
	roots, err := a.envRoots(ctx, env)
	if err != nil {
		return nil, err
	}

	reachable := map[string]bool{}
	for _, root := range roots {
		if err := markReachable(ctx, g, root, reachable); err != nil {
			return nil, err
		}
	}

	var out []string
	for n := range reachable {
		typ, err := g.Get(ctx, n).Type(ctx)
		if err != nil {
			return nil, err
		}
		if typ != nodeType {
			continue
		}
		ok, err := visible(ctx, a.coord, g, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasEnvPrefix(name, env string) bool {
	prefix := env + "#"
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}

// ExpandRangeExpression parses expr (spec §4.6) and evaluates it (§4.7)
// against the primary graph, relative to env.
func (a *API) ExpandRangeExpression(ctx context.Context, env, expr string) ([]string, error) {
	node, err := lang.Parse(expr)
	if err != nil {
		return nil, err
	}
	set, err := lang.Eval(ctx, &langResolver{api: a}, env, node)
	if err != nil {
		return nil, err
	}
	return set.Slice(), nil
}

// SimpleExpand returns node's direct forward ("member") neighbors. If
// typ is non-empty, node must match it or ErrInvalidEnvironment's sibling
// IncorrectNodeType-style check fails via store.ErrIncorrectNodeType.
func (a *API) SimpleExpand(ctx context.Context, env, node, typ string) ([]string, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return nil, err
	}
	if typ != "" {
		actual, err := g.Get(ctx, qname).Type(ctx)
		if err != nil {
			return nil, err
		}
		if actual != typ {
			return nil, store.ErrIncorrectNodeType
		}
	}
	names, err := g.Get(ctx, qname).Edges(ctx, true, memberLabel)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// SimpleExpandCluster is the CLUSTER-typed variant of SimpleExpand.
func (a *API) SimpleExpandCluster(ctx context.Context, env, cluster string) ([]string, error) {
	return a.SimpleExpand(ctx, env, cluster, TypeCluster)
}

// SimpleExpandEnv is the ENVIRONMENT-typed variant of SimpleExpand.
func (a *API) SimpleExpandEnv(ctx context.Context, env string) ([]string, error) {
	return a.SimpleExpand(ctx, "", env, TypeEnvironment)
}

// GetKeys returns node's tag keys, sorted.
func (a *API) GetKeys(ctx context.Context, env, node string) ([]string, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return nil, err
	}
	keys, err := g.Get(ctx, qname).Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// FetchKey returns the values stored under key on node.
func (a *API) FetchKey(ctx context.Context, env, node, key string) ([]string, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return nil, err
	}
	return g.Get(ctx, qname).TagValues(ctx, key)
}

// FetchAllKeys returns every tag key and its values on node, as an
// order-preserving result.Object keyed by tag name (sorted, matching
// GetKeys' ordering).
func (a *API) FetchAllKeys(ctx context.Context, env, node string) (*result.Object, error) {
	keys, err := a.GetKeys(ctx, env, node)
	if err != nil {
		return nil, err
	}
	obj := result.NewObject()
	for _, k := range keys {
		values, err := a.FetchKey(ctx, env, node, k)
		if err != nil {
			return nil, err
		}
		obj.Set(k, result.StringSlice(values))
	}
	return obj, nil
}

// Expand performs a depth-bounded DFS of the primary graph from node,
// producing the nested object {type, name, tags, dependencies[],
// children{name: subtree}} spec §4.9 describes. depth <= 0 means
// unbounded. Cycles are broken by a visited set.
func (a *API) Expand(ctx context.Context, env, node string, depth int) (result.Value, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return result.Null, err
	}
	return a.expandNode(ctx, qname, depth, map[string]bool{})
}

// ExpandCluster is the CLUSTER-typed variant of Expand.
func (a *API) ExpandCluster(ctx context.Context, env, cluster string, depth int) (result.Value, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, cluster)
	if err != nil {
		return result.Null, err
	}
	if typ, err := g.Get(ctx, qname).Type(ctx); err != nil {
		return result.Null, err
	} else if typ != TypeCluster {
		return result.Null, store.ErrIncorrectNodeType
	}
	return a.expandNode(ctx, qname, depth, map[string]bool{})
}

// ExpandEnv is the ENVIRONMENT-typed variant of Expand.
func (a *API) ExpandEnv(ctx context.Context, env string, depth int) (result.Value, error) {
	return a.expandNode(ctx, env, depth, map[string]bool{})
}

func (a *API) expandNode(ctx context.Context, name string, depth int, visited map[string]bool) (result.Value, error) {
	if visited[name] {
		return result.Null, nil
	}
	visited[name] = true

	g := a.primary()
	n := g.Get(ctx, name)
	typ, err := n.Type(ctx)
	if err != nil {
		return result.Null, err
	}

	obj := result.NewObject()
	obj.Set("type", result.String(typ))
	obj.Set("name", result.String(name))

	keys, err := n.Keys(ctx)
	if err != nil {
		return result.Null, err
	}
	sort.Strings(keys)
	tags := result.NewObject()
	for _, k := range keys {
		values, err := n.TagValues(ctx, k)
		if err != nil {
			return result.Null, err
		}
		tags.Set(k, result.StringSlice(values))
	}
	obj.Set("tags", tags.Value())

	deps, err := a.dependency().Get(ctx, name).Edges(ctx, true, dependencyLabel)
	if err != nil && err != store.ErrNodeNotFound {
		return result.Null, err
	}
	sort.Strings(deps)
	obj.Set("dependencies", result.StringSlice(deps))

	children, err := n.Edges(ctx, true, memberLabel)
	if err != nil {
		return result.Null, err
	}
	sort.Strings(children)

	childObj := result.NewObject()
	if depth != 1 {
		nextDepth := depth - 1
		if depth <= 0 {
			nextDepth = depth
		}
		for _, c := range children {
			sub, err := a.expandNode(ctx, c, nextDepth, visited)
			if err != nil {
				return result.Null, err
			}
			childObj.Set(c, sub)
		}
	}
	obj.Set("children", childObj.Value())

	return obj.Value(), nil
}

// GetClusters returns node's direct reverse ("member") edges — its parent
// clusters/environments.
func (a *API) GetClusters(ctx context.Context, env, node string) ([]string, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return nil, err
	}
	names, err := g.Get(ctx, qname).Edges(ctx, false, memberLabel)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// KeyHit is one result of a parents-search for the first node in a reverse
// walk that carries key.
type KeyHit struct {
	Name   string
	Values []string
}

// BFSSearchParentsForFirstKey walks node's reverse ("member") edges
// breadth-first until it finds a node carrying key, returning its name and
// values.
func (a *API) BFSSearchParentsForFirstKey(ctx context.Context, env, node, key string) (KeyHit, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return KeyHit{}, err
	}
	queue := []string{qname}
	visited := map[string]bool{qname: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		values, err := g.Get(ctx, cur).TagValues(ctx, key)
		if err == nil {
			return KeyHit{Name: cur, Values: values}, nil
		}
		if err != store.ErrKeyNotFound {
			return KeyHit{}, err
		}

		parents, err := g.Get(ctx, cur).Edges(ctx, false, memberLabel)
		if err != nil {
			return KeyHit{}, err
		}
		for _, p := range parents {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return KeyHit{}, store.ErrKeyNotFound
}

// DFSSearchParentsForFirstKey is the depth-first variant of
// BFSSearchParentsForFirstKey.
func (a *API) DFSSearchParentsForFirstKey(ctx context.Context, env, node, key string) (KeyHit, error) {
	g := a.primary()
	qname, err := qualify(ctx, g, env, node)
	if err != nil {
		return KeyHit{}, err
	}
	visited := map[string]bool{}
	hit, found, err := a.dfsKey(ctx, g, qname, key, visited)
	if err != nil {
		return KeyHit{}, err
	}
	if !found {
		return KeyHit{}, store.ErrKeyNotFound
	}
	return hit, nil
}

func (a *API) dfsKey(ctx context.Context, g *store.Graph, name, key string, visited map[string]bool) (KeyHit, bool, error) {
	if visited[name] {
		return KeyHit{}, false, nil
	}
	visited[name] = true

	values, err := g.Get(ctx, name).TagValues(ctx, key)
	if err == nil {
		return KeyHit{Name: name, Values: values}, true, nil
	}
	if err != store.ErrKeyNotFound {
		return KeyHit{}, false, err
	}

	parents, err := g.Get(ctx, name).Edges(ctx, false, memberLabel)
	if err != nil {
		return KeyHit{}, false, err
	}
	for _, p := range parents {
		hit, found, err := a.dfsKey(ctx, g, p, key, visited)
		if err != nil {
			return KeyHit{}, false, err
		}
		if found {
			return hit, true, nil
		}
	}
	return KeyHit{}, false, nil
}

// NearestCommonAncestor runs concurrent BFS from n1 and n2 up the reverse
// ("member") edge graph, alternating one step each, and returns the first
// node reached by both frontiers. Ties are broken by the shorter total
// path length, then by whichever frontier found it first.
func (a *API) NearestCommonAncestor(ctx context.Context, env, n1, n2 string) (string, error) {
	g := a.primary()
	q1, err := qualify(ctx, g, env, n1)
	if err != nil {
		return "", err
	}
	q2, err := qualify(ctx, g, env, n2)
	if err != nil {
		return "", err
	}

	dist1 := map[string]int{q1: 0}
	dist2 := map[string]int{q2: 0}
	frontier1 := []string{q1}
	frontier2 := []string{q2}

	if q1 == q2 {
		return q1, nil
	}
	if _, ok := dist2[q1]; ok {
		return q1, nil
	}

	for len(frontier1) > 0 || len(frontier2) > 0 {
		if len(frontier1) > 0 {
			next, found, err := a.stepFrontier(ctx, g, frontier1, dist1, dist2)
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
			frontier1 = next
		}
		if len(frontier2) > 0 {
			next, found, err := a.stepFrontier(ctx, g, frontier2, dist2, dist1)
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
			frontier2 = next
		}
	}
	return "", store.ErrNodeNotFound
}

func (a *API) stepFrontier(ctx context.Context, g *store.Graph, frontier []string, own, other map[string]int) ([]string, string, error) {
	var next []string
	best, bestDist := "", 0
	for _, name := range frontier {
		parents, err := g.Get(ctx, name).Edges(ctx, false, memberLabel)
		if err != nil {
			return nil, "", err
		}
		for _, p := range parents {
			if _, ok := own[p]; ok {
				continue
			}
			own[p] = own[name] + 1
			if d, ok := other[p]; ok {
				if best == "" || d < bestDist {
					best, bestDist = p, d
				}
				continue
			}
			next = append(next, p)
		}
	}
	if best != "" {
		return nil, best, nil
	}
	return next, "", nil
}

// FindOrphanedNodes enumerates every node in the primary graph not
// reachable from any ENVIRONMENT node via forward edges.
func (a *API) FindOrphanedNodes(ctx context.Context) ([]string, error) {
	g := a.primary()
	names, err := g.AllNames(ctx)
	if err != nil {
		return nil, err
	}

	reachable := map[string]bool{}
	for _, n := range names {
		typ, err := g.Get(ctx, n).Type(ctx)
		if err != nil {
			return nil, err
		}
		if typ != TypeEnvironment {
			continue
		}
		if err := markReachable(ctx, g, n, reachable); err != nil {
			return nil, err
		}
	}

	var orphans []string
	for _, n := range names {
		if reachable[n] {
			continue
		}
		ok, err := visible(ctx, a.coord, g, n)
		if err != nil {
			return nil, err
		}
		if ok {
			orphans = append(orphans, n)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

func markReachable(ctx context.Context, g *store.Graph, name string, reachable map[string]bool) error {
	if reachable[name] {
		return nil
	}
	reachable[name] = true
	children, err := g.Get(ctx, name).Edges(ctx, true, memberLabel)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := markReachable(ctx, g, c, reachable); err != nil {
			return err
		}
	}
	return nil
}
