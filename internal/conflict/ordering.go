package conflict

import (
	"slices"
	"strings"

	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Ordering returns sigs as a linear extension of Edge: a signature always
// precedes every signature it strictly supersedes. Ready nodes are taken in
// key order, so the result does not depend on the order of sigs.
func Ordering(rel typetag.Provider, sigs []signature.Signature) []signature.Signature {
	return OrderingWith(rel, sigs, KeyTieBreaker)
}

// OrderingWith is Ordering with a custom tie breaker.
func OrderingWith(rel typetag.Provider, sigs []signature.Signature, tie TieBreaker) []signature.Signature {
	nodes := unique(sigs)
	byKey := make(map[string]signature.Signature, len(nodes))
	successors := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byKey[n.Key()] = n
		inDegree[n.Key()] = 0
	}

	for _, a := range nodes {
		for _, b := range nodes {
			if a.Equal(b) || !EdgeWith(rel, a, b, tie) {
				continue
			}
			successors[a.Key()] = append(successors[a.Key()], b.Key())
			inDegree[b.Key()]++
		}
	}

	var ready []string
	for _, n := range nodes {
		if inDegree[n.Key()] == 0 {
			ready = append(ready, n.Key())
		}
	}

	done := make(map[string]bool, len(nodes))
	result := make([]signature.Signature, 0, len(nodes))
	for len(result) < len(nodes) {
		if len(ready) == 0 {
			// Only reachable through degenerate variadic comparisons.
			forced := breakCycle(nodes, done)
			log.Warn(log.CatConflict, "cycle detected in specificity graph", "forced", forced)
			ready = append(ready, forced)
		}

		key := ready[0]
		ready = ready[1:]
		if done[key] {
			continue
		}
		done[key] = true
		result = append(result, byKey[key])

		for _, next := range successors[key] {
			inDegree[next]--
			if inDegree[next] == 0 && !done[next] {
				ready = insertSorted(ready, next)
			}
		}
	}
	return result
}

// breakCycle picks the smallest key not yet emitted.
func breakCycle(nodes []signature.Signature, done map[string]bool) string {
	for _, n := range nodes {
		if !done[n.Key()] {
			return n.Key()
		}
	}
	return ""
}

func insertSorted(keys []string, key string) []string {
	i, _ := slices.BinarySearchFunc(keys, key, strings.Compare)
	return slices.Insert(keys, i, key)
}
