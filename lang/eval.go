package lang

import (
	"context"
	"fmt"
)

// Resolver bridges the evaluator to a concrete graph backend. env is the
// environment a bare name is resolved relative to; implementations are free
// to ignore it for environment-less lookups.
type Resolver interface {
	// Expand returns the direct members (hosts and sub-clusters) of the
	// cluster or environment named name. This backs the '%' operator.
	Expand(ctx context.Context, env, name string) (Set, error)
	// Hosts returns name's direct reverse edges — its immediate parent
	// clusters or environments. This backs the '*' operator.
	Hosts(ctx context.Context, env, name string) (Set, error)
	// Admins returns the ADMIN_NODE tag's values found by walking up
	// name's containing clusters and environments to the nearest
	// ancestor carrying that tag. This backs the '^' operator.
	Admins(ctx context.Context, env, name string) (Set, error)
	// AllHosts returns every host known within env, the universe against
	// which '!' negation is computed.
	AllHosts(ctx context.Context, env string) (Set, error)
	// AllClusters returns every cluster known within env.
	AllClusters(ctx context.Context, env string) (Set, error)
	// KeyValue returns the tag value stored under key on name, to be
	// re-parsed and evaluated as a nested range expression. This backs
	// the ':' operator.
	KeyValue(ctx context.Context, env, name, key string) (string, error)
	// Match returns every known name within env matching the regular
	// expression pattern. This backs bare /pattern/ nodes.
	Match(ctx context.Context, env, pattern string) (Set, error)
}

// Eval evaluates n against resolver, relative to the given environment. env
// may be empty, meaning "no environment prefix in scope yet" — top-level
// range expressions typically start with an environment-qualified Word or a
// function call that establishes one.
func Eval(ctx context.Context, resolver Resolver, env string, n Node) (Set, error) {
	switch t := n.(type) {
	case Word:
		return NewSet(t.Name), nil

	case Literal:
		return NewSet(t.Value), nil

	case Regex:
		return resolver.Match(ctx, env, t.Pattern)

	case Sequence:
		return evalSequence(t), nil

	case Group:
		return Eval(ctx, resolver, env, t.Inner)

	case Union:
		out := Set{}
		for _, m := range t.Members {
			s, err := Eval(ctx, resolver, env, m)
			if err != nil {
				return Set{}, err
			}
			out.AddAll(s)
		}
		return out, nil

	case Difference:
		left, err := Eval(ctx, resolver, env, t.Left)
		if err != nil {
			return Set{}, err
		}
		right, err := Eval(ctx, resolver, env, t.Right)
		if err != nil {
			return Set{}, err
		}
		return Difference2(left, right), nil

	case Intersection:
		left, err := Eval(ctx, resolver, env, t.Left)
		if err != nil {
			return Set{}, err
		}
		right, err := Eval(ctx, resolver, env, t.Right)
		if err != nil {
			return Set{}, err
		}
		return Intersection2(left, right), nil

	case Negate:
		operand, err := Eval(ctx, resolver, env, t.Operand)
		if err != nil {
			return Set{}, err
		}
		universe, err := resolver.AllHosts(ctx, env)
		if err != nil {
			return Set{}, err
		}
		return Difference2(universe, operand), nil

	case Expand:
		names, err := Eval(ctx, resolver, env, t.Operand)
		if err != nil {
			return Set{}, err
		}
		out := Set{}
		for _, name := range names.Slice() {
			s, err := resolver.Expand(ctx, env, name)
			if err != nil {
				return Set{}, err
			}
			out.AddAll(s)
		}
		return out, nil

	case GetCluster:
		names, err := Eval(ctx, resolver, env, t.Operand)
		if err != nil {
			return Set{}, err
		}
		out := Set{}
		for _, name := range names.Slice() {
			s, err := resolver.Hosts(ctx, env, name)
			if err != nil {
				return Set{}, err
			}
			out.AddAll(s)
		}
		return out, nil

	case Admin:
		names, err := Eval(ctx, resolver, env, t.Operand)
		if err != nil {
			return Set{}, err
		}
		out := Set{}
		for _, name := range names.Slice() {
			s, err := resolver.Admins(ctx, env, name)
			if err != nil {
				return Set{}, err
			}
			out.AddAll(s)
		}
		return out, nil

	case KeyExpand:
		names, err := Eval(ctx, resolver, env, t.Operand)
		if err != nil {
			return Set{}, err
		}
		out := Set{}
		for _, name := range names.Slice() {
			raw, err := resolver.KeyValue(ctx, env, name, t.Key)
			if err != nil {
				return Set{}, err
			}
			if raw == "" {
				continue
			}
			sub, err := Parse(raw)
			if err != nil {
				return Set{}, fmt.Errorf("lang: evaluating %s:%s: %w", name, t.Key, err)
			}
			s, err := Eval(ctx, resolver, env, sub)
			if err != nil {
				return Set{}, err
			}
			out.AddAll(s)
		}
		return out, nil

	case BraceExpand:
		out := Set{}
		for _, alt := range t.Alternatives {
			altSet, err := Eval(ctx, resolver, env, alt)
			if err != nil {
				return Set{}, err
			}
			for _, v := range altSet.Slice() {
				out.Add(t.Prefix + v + t.Suffix)
			}
		}
		return out, nil

	case FunctionCall:
		return evalFunctionCall(ctx, resolver, env, t)

	default:
		return Set{}, fmt.Errorf("lang: unhandled node type %T", n)
	}
}

func evalSequence(s Sequence) Set {
	lo, hi := s.Lo, s.Hi
	if hi < lo {
		return NewSet(formatSeqMember(s.Prefix, lo, s.Width))
	}
	out := Set{}
	for i := lo; i <= hi; i++ {
		out.Add(formatSeqMember(s.Prefix, i, s.Width))
	}
	return out
}

func formatSeqMember(prefix string, n, width int) string {
	return prefix + fmt.Sprintf("%0*d", width, n)
}
