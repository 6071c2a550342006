package typetag

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Hierarchy is a declared nominal type lattice with multiple inheritance.
// Chains are computed with C3 linearization when a tag is declared, so a
// parent must be declared before its children and cycles cannot be formed.
type Hierarchy struct {
	mu       sync.RWMutex
	parents  map[Tag][]Tag
	chains   map[Tag][]Tag
	ancestry map[Tag]map[Tag]struct{}
	order    []Tag
	bindings map[reflect.Type]Tag
}

// NewHierarchy creates a hierarchy containing only Any.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		parents:  make(map[Tag][]Tag),
		chains:   make(map[Tag][]Tag),
		ancestry: make(map[Tag]map[Tag]struct{}),
		bindings: make(map[reflect.Type]Tag),
	}
	h.chains[Any] = []Tag{Any}
	h.ancestry[Any] = map[Tag]struct{}{Any: {}}
	h.order = append(h.order, Any)
	return h
}

// Declare adds tag with the given direct parents, most significant first.
// A tag with no parents derives from Any.
func (h *Hierarchy) Declare(tag Tag, parents ...Tag) error {
	if err := ValidName(string(tag)); err != nil {
		return fmt.Errorf("declare %q: %w", tag, err)
	}
	if tag == Any {
		return fmt.Errorf("declare %q: %w", tag, ErrReservedTagName)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.chains[tag]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
	}
	if len(parents) == 0 {
		parents = []Tag{Any}
	}
	seqs := make([][]Tag, 0, len(parents)+1)
	for _, p := range parents {
		chain, ok := h.chains[p]
		if !ok {
			return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownTag, p, tag)
		}
		seqs = append(seqs, slices.Clone(chain))
	}
	seqs = append(seqs, slices.Clone(parents))

	merged, err := c3Merge(seqs)
	if err != nil {
		return fmt.Errorf("declare %s: %w", tag, err)
	}
	chain := append([]Tag{tag}, merged...)

	set := make(map[Tag]struct{}, len(chain))
	for _, t := range chain {
		set[t] = struct{}{}
	}
	h.parents[tag] = slices.Clone(parents)
	h.chains[tag] = chain
	h.ancestry[tag] = set
	h.order = append(h.order, tag)
	return nil
}

// MustDeclare is Declare for static fixtures; it panics on error.
func (h *Hierarchy) MustDeclare(tag Tag, parents ...Tag) *Hierarchy {
	if err := h.Declare(tag, parents...); err != nil {
		panic(err)
	}
	return h
}

// Bind maps the dynamic Go type of sample onto tag for TagOf.
func (h *Hierarchy) Bind(sample any, tag Tag) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chains[tag]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	h.bindings[reflect.TypeOf(sample)] = tag
	return nil
}

// Known implements Provider.
func (h *Hierarchy) Known(t Tag) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.chains[t]
	return ok
}

// IsSubtype implements Provider.
func (h *Hierarchy) IsSubtype(sub, super Tag) bool {
	if sub == super {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	anc, ok := h.ancestry[sub]
	if !ok {
		return false
	}
	_, ok = anc[super]
	return ok
}

// Chain implements Provider.
func (h *Hierarchy) Chain(t Tag) []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()
	chain, ok := h.chains[t]
	if !ok {
		return nil
	}
	return slices.Clone(chain)
}

// Parents returns the declared direct parents of t.
func (h *Hierarchy) Parents(t Tag) []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.parents[t])
}

// Tags returns all declared tags in declaration order, Any first.
func (h *Hierarchy) Tags() []Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}

// TagOf implements Classifier. Values implementing Tagged report their own
// tag; otherwise the value's Go type must have been bound.
func (h *Hierarchy) TagOf(v any) (Tag, error) {
	if tv, ok := v.(Tagged); ok {
		tag := tv.DispatchTag()
		if !h.Known(tag) {
			return "", fmt.Errorf("%w: %s", ErrUnknownTag, tag)
		}
		return tag, nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if tag, ok := h.bindings[reflect.TypeOf(v)]; ok {
		return tag, nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnclassifiable, v)
}

// c3Merge performs the merge step of C3 linearization.
func c3Merge(seqs [][]Tag) ([]Tag, error) {
	var result []Tag
	for {
		nonEmpty := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				nonEmpty = append(nonEmpty, s)
			}
		}
		seqs = nonEmpty
		if len(seqs) == 0 {
			return result, nil
		}

		var head Tag
		found := false
		for _, s := range seqs {
			candidate := s[0]
			if !inAnyTail(candidate, seqs) {
				head = candidate
				found = true
				break
			}
		}
		if !found {
			return nil, ErrInconsistentMRO
		}

		result = append(result, head)
		for i, s := range seqs {
			if s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inAnyTail(t Tag, seqs [][]Tag) bool {
	for _, s := range seqs {
		if slices.Contains(s[1:], t) {
			return true
		}
	}
	return false
}
