package api

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/evalgo/rangedb/lang"
	"github.com/evalgo/rangedb/store"
)

// langResolver adapts API to lang.Resolver, letting expand_range_expression
// run the §4.6/4.7 evaluator directly against the primary graph.
type langResolver struct {
	api *API
}

var _ lang.Resolver = (*langResolver)(nil)

func (r *langResolver) Expand(ctx context.Context, env, name string) (lang.Set, error) {
	g := r.api.primary()
	qname, err := qualify(ctx, g, env, name)
	if err != nil {
		return lang.Set{}, err
	}
	names, err := g.Get(ctx, qname).Edges(ctx, true, memberLabel)
	if err != nil {
		return lang.Set{}, err
	}
	sort.Strings(names)
	return lang.NewSet(names...), nil
}

// Hosts returns name's direct reverse ("member") edges — its immediate
// parent clusters or environments. This backs the '*' operator.
func (r *langResolver) Hosts(ctx context.Context, env, name string) (lang.Set, error) {
	g := r.api.primary()
	qname, err := qualify(ctx, g, env, name)
	if err != nil {
		return lang.Set{}, err
	}
	names, err := g.Get(ctx, qname).Edges(ctx, false, memberLabel)
	if err != nil {
		return lang.Set{}, err
	}
	sort.Strings(names)
	return lang.NewSet(names...), nil
}

// Admins walks up name's containing clusters and environments, breadth
// first, until it reaches one tagged ADMIN_NODE, then returns that tag's
// values. This backs the '^' operator.
func (r *langResolver) Admins(ctx context.Context, env, name string) (lang.Set, error) {
	g := r.api.primary()
	qname, err := qualify(ctx, g, env, name)
	if err != nil {
		return lang.Set{}, err
	}
	hit, err := r.api.BFSSearchParentsForFirstKey(ctx, "", qname, adminTagKey)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return lang.NewSet(), nil
		}
		return lang.Set{}, err
	}
	sort.Strings(hit.Values)
	return lang.NewSet(hit.Values...), nil
}

func (r *langResolver) AllHosts(ctx context.Context, env string) (lang.Set, error) {
	names, err := r.api.enumerateByMembership(ctx, env, TypeHost)
	if err != nil {
		return lang.Set{}, err
	}
	return lang.NewSet(names...), nil
}

func (r *langResolver) AllClusters(ctx context.Context, env string) (lang.Set, error) {
	names, err := r.api.enumerateByMembership(ctx, env, TypeCluster)
	if err != nil {
		return lang.Set{}, err
	}
	return lang.NewSet(names...), nil
}

func (r *langResolver) KeyValue(ctx context.Context, env, name, key string) (string, error) {
	g := r.api.primary()
	qname, err := qualify(ctx, g, env, name)
	if err != nil {
		return "", err
	}
	values, err := g.Get(ctx, qname).TagValues(ctx, key)
	if err != nil {
		return "", err
	}
	return strings.Join(values, ","), nil
}

func (r *langResolver) Match(ctx context.Context, env, pattern string) (lang.Set, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return lang.Set{}, err
	}
	g := r.api.primary()
	names, err := g.AllNames(ctx)
	if err != nil {
		return lang.Set{}, err
	}
	out := lang.NewSet()
	for _, n := range names {
		if env != "" && !strings.HasPrefix(n, env+"#") {
			continue
		}
		if re.MatchString(n) {
			out.Add(n)
		}
	}
	return out, nil
}
