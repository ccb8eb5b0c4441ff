package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Word(t *testing.T) {
	n, err := Parse("host1")
	require.NoError(t, err)
	assert.Equal(t, Word{Name: "host1"}, n)
}

func TestParse_UnionDifferenceIntersection(t *testing.T) {
	n, err := Parse("a,b - c&d")
	require.NoError(t, err)

	union, ok := n.(Union)
	require.True(t, ok)
	require.Len(t, union.Members, 2)
	assert.Equal(t, Word{Name: "a"}, union.Members[0])

	diff, ok := union.Members[1].(Difference)
	require.True(t, ok)
	assert.Equal(t, Word{Name: "b"}, diff.Left)

	inter, ok := diff.Right.(Intersection)
	require.True(t, ok)
	assert.Equal(t, Word{Name: "c"}, inter.Left)
	assert.Equal(t, Word{Name: "d"}, inter.Right)
}

func TestParse_UnaryOperators(t *testing.T) {
	cases := map[string]Node{
		"%cluster1": Expand{Operand: Word{Name: "cluster1"}},
		"*cluster1": GetCluster{Operand: Word{Name: "cluster1"}},
		"^host1":    Admin{Operand: Word{Name: "host1"}},
		"!host1":    Negate{Operand: Word{Name: "host1"}},
	}
	for src, want := range cases {
		n, err := Parse(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, n, src)
	}
}

func TestParse_KeyExpand(t *testing.T) {
	n, err := Parse("host1:ROLE")
	require.NoError(t, err)
	assert.Equal(t, KeyExpand{Operand: Word{Name: "host1"}, Key: "ROLE"}, n)
}

func TestParse_Group(t *testing.T) {
	n, err := Parse("(a,b)&c")
	require.NoError(t, err)
	inter, ok := n.(Intersection)
	require.True(t, ok)
	group, ok := inter.Left.(Group)
	require.True(t, ok)
	_, ok = group.Inner.(Union)
	assert.True(t, ok)
}

func TestParse_Sequence(t *testing.T) {
	n, err := Parse("host01..host10")
	require.NoError(t, err)
	assert.Equal(t, Sequence{Prefix: "host", Lo: 1, Hi: 10, Width: 2}, n)
}

func TestParse_SequenceMismatchedPrefixErrors(t *testing.T) {
	_, err := Parse("host01..other10")
	assert.ErrorIs(t, err, ErrInvalidRangeExpression)
}

func TestParse_BraceExpansion(t *testing.T) {
	n, err := Parse("web{1,2,3}.example")
	require.NoError(t, err)
	be, ok := n.(BraceExpand)
	require.True(t, ok)
	assert.Equal(t, "web", be.Prefix)
	assert.Equal(t, ".example", be.Suffix)
	require.Len(t, be.Alternatives, 3)
}

func TestParse_FunctionCall(t *testing.T) {
	n, err := Parse("expand(cluster1;cluster2)")
	require.NoError(t, err)
	fc, ok := n.(FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "expand", fc.Name)
	require.Len(t, fc.Args, 2)
}

func TestParse_FunctionCallNoArgs(t *testing.T) {
	n, err := Parse("all_clusters()")
	require.NoError(t, err)
	fc, ok := n.(FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "all_clusters", fc.Name)
	assert.Len(t, fc.Args, 0)
}

func TestParse_RegexLiteral(t *testing.T) {
	n, err := Parse(`/^web/`)
	require.NoError(t, err)
	assert.Equal(t, Regex{Pattern: "^web"}, n)
}

func TestParse_TrailingInputErrors(t *testing.T) {
	_, err := Parse("a)")
	assert.ErrorIs(t, err, ErrInvalidRangeExpression)
}

func TestParse_UnclosedGroupErrors(t *testing.T) {
	_, err := Parse("(a,b")
	assert.ErrorIs(t, err, ErrInvalidRangeExpression)
}
