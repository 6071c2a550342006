// Package conflict analyses a set of signatures: which pairs are ambiguous,
// and in which order they must be tried so the most specific wins.
package conflict

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Analysis errors
var (
	ErrNoSignatures  = errors.New("no signatures given")
	ErrArityMismatch = errors.New("signatures differ in length")
)

// Pair is an unordered pair of signatures, stored with A.Key() < B.Key().
type Pair struct {
	A, B signature.Signature
}

// NewPair orders a and b by key.
func NewPair(a, b signature.Signature) Pair {
	if b.Key() < a.Key() {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Signatures returns the pair as a slice.
func (p Pair) Signatures() []signature.Signature {
	return []signature.Signature{p.A, p.B}
}

func (p Pair) String() string {
	return "[" + p.A.String() + "] <> [" + p.B.String() + "]"
}

// Ambiguities returns every ambiguous pair that no third signature
// dominates. Pairs are sorted by key.
func Ambiguities(rel typetag.Provider, sigs []signature.Signature) []Pair {
	nodes := unique(sigs)
	var pairs []Pair
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			if !signature.Ambiguous(rel, a, b) {
				continue
			}
			if dominated(rel, nodes, a, b) {
				continue
			}
			pairs = append(pairs, Pair{A: a, B: b})
		}
	}
	return pairs
}

func dominated(rel typetag.Provider, nodes []signature.Signature, a, b signature.Signature) bool {
	for _, c := range nodes {
		if signature.Supersedes(rel, c, a) && signature.Supersedes(rel, c, b) {
			return true
		}
	}
	return false
}

// TieBreaker orders signatures of identical specificity.
type TieBreaker func(signature.Signature) string

// KeyTieBreaker breaks ties by canonical key, which is stable across runs
// and registration orders.
func KeyTieBreaker(s signature.Signature) string { return s.Key() }

// Edge reports whether a must be tried before b.
func Edge(rel typetag.Provider, a, b signature.Signature) bool {
	return EdgeWith(rel, a, b, KeyTieBreaker)
}

// EdgeWith is Edge with a custom tie breaker.
func EdgeWith(rel typetag.Provider, a, b signature.Signature, tie TieBreaker) bool {
	return signature.Supersedes(rel, a, b) &&
		(!signature.Supersedes(rel, b, a) || tie(a) > tie(b))
}

// SuperSignature suggests a signature that supersedes every one of sigs:
// per position, the element whose type has the longest specificity chain.
func SuperSignature(rel typetag.Provider, sigs []signature.Signature) (signature.Signature, error) {
	if len(sigs) == 0 {
		return signature.Signature{}, ErrNoSignatures
	}
	n := sigs[0].Len()
	for _, s := range sigs[1:] {
		if s.Len() != n {
			return signature.Signature{}, fmt.Errorf("%w: [%s] and [%s]", ErrArityMismatch, sigs[0], s)
		}
	}

	elems := make([]signature.Element, n)
	for i := 0; i < n; i++ {
		best := sigs[0].At(i)
		depth := chainDepth(rel, best)
		for _, s := range sigs[1:] {
			if d := chainDepth(rel, s.At(i)); d > depth {
				best, depth = s.At(i), d
			}
		}
		elems[i] = best
	}
	return signature.New(elems...), nil
}

func chainDepth(rel typetag.Provider, e signature.Element) int {
	tags := e.Tags()
	if len(tags) == 0 {
		return 0
	}
	return len(rel.Chain(tags[0]))
}

// RemoveObsolete drops signatures strictly superseded by another signature
// of the same length.
func RemoveObsolete(rel typetag.Provider, sigs []signature.Signature) []signature.Signature {
	var kept []signature.Signature
	for _, a := range sigs {
		obsolete := false
		for _, b := range sigs {
			if a.Equal(b) || a.Len() != b.Len() {
				continue
			}
			if signature.Supersedes(rel, b, a) && !signature.Supersedes(rel, a, b) {
				obsolete = true
				break
			}
		}
		if !obsolete {
			kept = append(kept, a)
		}
	}
	return kept
}

// unique deduplicates by key and sorts by key.
func unique(sigs []signature.Signature) []signature.Signature {
	nodes := slices.Clone(sigs)
	slices.SortFunc(nodes, func(a, b signature.Signature) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return slices.CompactFunc(nodes, func(a, b signature.Signature) bool {
		return a.Equal(b)
	})
}
