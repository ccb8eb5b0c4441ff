package lang

import (
	"context"
	"fmt"
)

// BuiltinFunc implements one named function callable from a range
// expression. args are the call's unevaluated argument ASTs, so a builtin
// can choose whether to evaluate them as range expressions or treat them as
// literal identifiers (e.g. an environment name).
type BuiltinFunc func(ctx context.Context, resolver Resolver, env string, args []Node) (Set, error)

// builtins is filled in init: the builtins call Eval, which looks them up
// here, so a direct initializer would be an initialization cycle.
var builtins map[string]BuiltinFunc

func init() {
	builtins = map[string]BuiltinFunc{
		"expand":       builtinExpand,
		"clusters":     builtinClusters,
		"all_clusters": builtinAllClusters,
		"expand_hosts": builtinExpandHosts,
	}
}

func evalFunctionCall(ctx context.Context, resolver Resolver, env string, fc FunctionCall) (Set, error) {
	fn, ok := builtins[fc.Name]
	if !ok {
		return Set{}, fmt.Errorf("%w: %s", ErrUnknownFunction, fc.Name)
	}
	return fn(ctx, resolver, env, fc.Args)
}

func requireArgs(name string, args []Node, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrIncorrectNumberOfArguments, name, n, len(args))
	}
	return nil
}

// expand(expr) expands every name expr evaluates to into its direct members
// — equivalent to the '%' prefix operator, spelled as a function.
func builtinExpand(ctx context.Context, resolver Resolver, env string, args []Node) (Set, error) {
	if err := requireArgs("expand", args, 1); err != nil {
		return Set{}, err
	}
	names, err := Eval(ctx, resolver, env, args[0])
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
}

// clusters(expr) returns the direct parent clusters/environments of every
// name expr evaluates to — equivalent to the '*' prefix operator, spelled
// as a function.
func builtinClusters(ctx context.Context, resolver Resolver, env string, args []Node) (Set, error) {
	if err := requireArgs("clusters", args, 1); err != nil {
		return Set{}, err
	}
	names, err := Eval(ctx, resolver, env, args[0])
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
}

// all_clusters() returns every cluster defined in the current environment.
func builtinAllClusters(ctx context.Context, resolver Resolver, env string, args []Node) (Set, error) {
	if err := requireArgs("all_clusters", args, 0); err != nil {
		return Set{}, err
	}
	return resolver.AllClusters(ctx, env)
}

// expand_hosts(expr) recursively expands every name expr evaluates to and
// returns the leaves reached (names with no members of their own). Node
// types are not checked, so an empty cluster is returned as a leaf too.
func builtinExpandHosts(ctx context.Context, resolver Resolver, env string, args []Node) (Set, error) {
	if err := requireArgs("expand_hosts", args, 1); err != nil {
		return Set{}, err
	}
	names, err := Eval(ctx, resolver, env, args[0])
	if err != nil {
		return Set{}, err
	}
	out, seen := Set{}, Set{}
	pending := append([]string(nil), names.Slice()...)
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if seen.Has(name) {
			continue
		}
		seen.Add(name)
		s, err := resolver.Expand(ctx, env, name)
		if err != nil {
			return Set{}, err
		}
		if s.Len() == 0 {
			out.Add(name)
		}
		pending = append(pending, s.Slice()...)
	}
	return out, nil
}
