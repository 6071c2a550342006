package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/testutil"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

func standard(t *testing.T) *typetag.Hierarchy {
	t.Helper()
	return testutil.NewBuilder(t).WithStandardTypes().Build()
}

func sigs(texts ...string) []signature.Signature {
	out := make([]signature.Signature, len(texts))
	for i, text := range texts {
		out[i] = signature.MustParse(text)
	}
	return out
}

func keys(ss []signature.Signature) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Key()
	}
	return out
}

func TestAmbiguities(t *testing.T) {
	h := standard(t)

	got := Ambiguities(h, sigs("A", "B", "A, B", "B, A", "A, C"))
	require.Len(t, got, 1)
	require.Equal(t, "A, B", got[0].A.Key())
	require.Equal(t, "B, A", got[0].B.Key())
	require.Equal(t, "[A, B] <> [B, A]", got[0].String())
}

func TestAmbiguities_DominatedPairExcluded(t *testing.T) {
	h := standard(t)

	require.Len(t, Ambiguities(h, sigs("A, B", "B, A")), 1)
	require.Empty(t, Ambiguities(h, sigs("A, B", "B, A", "B, B")))
}

func TestAmbiguities_IgnoresDuplicatesAndOrder(t *testing.T) {
	h := standard(t)

	a := Ambiguities(h, sigs("B, A", "A, B", "B, A"))
	b := Ambiguities(h, sigs("A, B", "B, A"))
	require.Equal(t, a, b)
}

func TestNewPair_OrdersByKey(t *testing.T) {
	p := NewPair(signature.MustParse("C"), signature.MustParse("A"))
	require.Equal(t, "A", p.A.Key())
	require.Equal(t, "C", p.B.Key())
	require.Len(t, p.Signatures(), 2)
}

func TestEdge(t *testing.T) {
	h := standard(t)
	a, b := signature.MustParse("A"), signature.MustParse("B")

	require.True(t, Edge(h, b, a))
	require.False(t, Edge(h, a, b))
	require.False(t, Edge(h, a, a), "a signature has no edge to itself")

	c := signature.MustParse("C")
	require.False(t, Edge(h, a, c))
	require.False(t, Edge(h, c, a))
}

func TestEdgeWith_BreaksMutualSupersession(t *testing.T) {
	// Every tag is a subtype of every other: all signatures tie.
	rel := flatRelation{}
	x, y := signature.MustParse("X"), signature.MustParse("Y")

	require.True(t, Edge(rel, y, x))
	require.False(t, Edge(rel, x, y))

	reversed := func(s signature.Signature) string {
		if s.Key() == "X" {
			return "2"
		}
		return "1"
	}
	require.True(t, EdgeWith(rel, x, y, reversed))
	require.False(t, EdgeWith(rel, y, x, reversed))
}

type flatRelation struct{}

func (flatRelation) Known(typetag.Tag) bool            { return true }
func (flatRelation) IsSubtype(_, _ typetag.Tag) bool   { return true }
func (flatRelation) Chain(t typetag.Tag) []typetag.Tag { return []typetag.Tag{t} }

func TestSuperSignature(t *testing.T) {
	h := standard(t)

	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "B"},
		{[]string{"A, B", "B, A"}, "B, B"},
		{[]string{"A, A, B", "A, B, A", "B, A, A"}, "B, B, B"},
	}
	for _, tt := range tests {
		got, err := SuperSignature(h, sigs(tt.in...))
		require.NoError(t, err)
		require.Equal(t, tt.want, got.Key(), "%v", tt.in)
	}
}

func TestSuperSignature_Errors(t *testing.T) {
	h := standard(t)

	_, err := SuperSignature(h, nil)
	require.ErrorIs(t, err, ErrNoSignatures)

	_, err = SuperSignature(h, sigs("A", "A, B"))
	require.ErrorIs(t, err, ErrArityMismatch)
}

func TestRemoveObsolete(t *testing.T) {
	h := standard(t)

	got := RemoveObsolete(h, sigs("A", "B", "A, A", "B, A", "A, B"))
	require.ElementsMatch(t, []string{"B", "A, B", "B, A"}, keys(got))
}
