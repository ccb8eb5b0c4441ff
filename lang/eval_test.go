package lang

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver is a minimal in-memory Resolver for evaluator tests: a flat
// map of name -> direct members, with hosts being names with no members.
type fakeResolver struct {
	members map[string][]string
	tags    map[string]map[string]string
}

func (f *fakeResolver) Expand(ctx context.Context, env, name string) (Set, error) {
	return NewSet(f.members[name]...), nil
}

func (f *fakeResolver) Hosts(ctx context.Context, env, name string) (Set, error) {
	out := Set{}
	for parent, kids := range f.members {
		for _, k := range kids {
			if k == name {
				out.Add(parent)
			}
		}
	}
	return out, nil
}

func (f *fakeResolver) Admins(ctx context.Context, env, name string) (Set, error) {
	out := Set{}
	for parent, kids := range f.members {
		for _, k := range kids {
			if k == name {
				out.Add(parent)
			}
		}
	}
	return out, nil
}

func (f *fakeResolver) AllHosts(ctx context.Context, env string) (Set, error) {
	out := Set{}
	for _, kids := range f.members {
		for _, k := range kids {
			if _, isCluster := f.members[k]; !isCluster {
				out.Add(k)
			}
		}
	}
	return out, nil
}

func (f *fakeResolver) AllClusters(ctx context.Context, env string) (Set, error) {
	out := Set{}
	for n := range f.members {
		out.Add(n)
	}
	return out, nil
}

func (f *fakeResolver) KeyValue(ctx context.Context, env, name, key string) (string, error) {
	return f.tags[name][key], nil
}

func (f *fakeResolver) Match(ctx context.Context, env, pattern string) (Set, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Set{}, err
	}
	out := Set{}
	for n := range f.members {
		if re.MatchString(n) {
			out.Add(n)
		}
	}
	for _, kids := range f.members {
		for _, k := range kids {
			if re.MatchString(k) {
				out.Add(k)
			}
		}
	}
	return out, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		members: map[string][]string{
			"web-cluster": {"web1", "web2"},
			"db-cluster":  {"db1"},
			"all":         {"web-cluster", "db-cluster"},
		},
		tags: map[string]map[string]string{
			"web1": {"PEER": "web2"},
		},
	}
}

func mustEval(t *testing.T, r Resolver, src string) []string {
	t.Helper()
	n, err := Parse(src)
	require.NoError(t, err)
	set, err := Eval(t.Context(), r, "", n)
	require.NoError(t, err)
	return set.Slice()
}

func TestEval_Word(t *testing.T) {
	assert.Equal(t, []string{"web1"}, mustEval(t, newFakeResolver(), "web1"))
}

func TestEval_Expand(t *testing.T) {
	assert.ElementsMatch(t, []string{"web1", "web2"}, mustEval(t, newFakeResolver(), "%web-cluster"))
}

func TestEval_GetCluster(t *testing.T) {
	assert.Equal(t, []string{"all"}, mustEval(t, newFakeResolver(), "*web-cluster"))
}

func TestEval_Admin(t *testing.T) {
	assert.Equal(t, []string{"web-cluster"}, mustEval(t, newFakeResolver(), "^web1"))
}

func TestEval_Union(t *testing.T) {
	assert.ElementsMatch(t, []string{"web1", "web2", "db1"}, mustEval(t, newFakeResolver(), "%web-cluster,%db-cluster"))
}

func TestEval_Difference(t *testing.T) {
	assert.Equal(t, []string{"web1"}, mustEval(t, newFakeResolver(), "%web-cluster - web2"))
}

func TestEval_Intersection(t *testing.T) {
	assert.Equal(t, []string{"web1"}, mustEval(t, newFakeResolver(), "%web-cluster&web1"))
}

func TestEval_Negate(t *testing.T) {
	got := mustEval(t, newFakeResolver(), "!web1")
	assert.NotContains(t, got, "web1")
	assert.Contains(t, got, "web2")
}

func TestEval_KeyExpand(t *testing.T) {
	assert.Equal(t, []string{"web2"}, mustEval(t, newFakeResolver(), "web1:PEER"))
}

func TestEval_BraceExpand(t *testing.T) {
	assert.ElementsMatch(t, []string{"web1", "web2"}, mustEval(t, newFakeResolver(), "web{1,2}"))
}

func TestEval_Sequence(t *testing.T) {
	n, err := Parse("srv01..srv03")
	require.NoError(t, err)
	set, err := Eval(t.Context(), newFakeResolver(), "", n)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv01", "srv02", "srv03"}, set.Slice())
}

func TestEval_FunctionCalls(t *testing.T) {
	r := newFakeResolver()
	assert.ElementsMatch(t, []string{"web1", "web2"}, mustEval(t, r, "expand(web-cluster)"))
	assert.Equal(t, []string{"web-cluster"}, mustEval(t, r, "clusters(web1)"))
	assert.ElementsMatch(t, []string{"web1", "web2", "db1"}, mustEval(t, r, "expand_hosts(all)"))

	n, err := Parse("all_clusters()")
	require.NoError(t, err)
	set, err := Eval(t.Context(), r, "", n)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web-cluster", "db-cluster", "all"}, set.Slice())
}

func TestEval_UnknownFunctionErrors(t *testing.T) {
	n, err := Parse("nope(web1)")
	require.NoError(t, err)
	_, err = Eval(t.Context(), newFakeResolver(), "", n)
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestEval_WrongArityErrors(t *testing.T) {
	n, err := Parse("expand(web1;web2)")
	require.NoError(t, err)
	_, err = Eval(t.Context(), newFakeResolver(), "", n)
	assert.ErrorIs(t, err, ErrIncorrectNumberOfArguments)
}

func TestEval_Regex(t *testing.T) {
	assert.ElementsMatch(t, []string{"web1", "web2"}, mustEval(t, newFakeResolver(), `/^web\d$/`))
}
