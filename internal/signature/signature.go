package signature

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Validation errors
var (
	ErrUnknownTag      = errors.New("unrecognized type tag")
	ErrVariadicNotLast = errors.New("variadic marker must be the final element")
	ErrEmptyVariadic   = errors.New("variadic marker wraps no type")
	ErrEmptyUnion      = errors.New("union marker has no alternatives")
	ErrSyntax          = errors.New("malformed signature text")
)

// Signature is an immutable ordered tuple of elements.
type Signature struct {
	elems []Element
	key   string
}

// New builds a signature from elements.
func New(elems ...Element) Signature {
	s := Signature{elems: slices.Clone(elems)}
	s.key = s.render()
	return s
}

// Tags builds a signature of concrete elements.
func Tags(tags ...typetag.Tag) Signature {
	elems := make([]Element, len(tags))
	for i, t := range tags {
		elems[i] = Of(t)
	}
	return New(elems...)
}

// Len returns the number of elements.
func (s Signature) Len() int { return len(s.elems) }

// At returns the element at i.
func (s Signature) At(i int) Element { return s.elems[i] }

// Elements returns a copy of the elements.
func (s Signature) Elements() []Element { return slices.Clone(s.elems) }

// Key is the canonical text of the signature; equal keys mean equal
// signatures.
func (s Signature) Key() string { return s.key }

// String implements fmt.Stringer.
func (s Signature) String() string { return s.key }

// Equal reports whether s and o are the same signature.
func (s Signature) Equal(o Signature) bool { return s.key == o.key }

// IsVariadic reports whether the final element is a variadic marker.
func (s Signature) IsVariadic() bool {
	return len(s.elems) > 0 && s.elems[len(s.elems)-1].IsVariadic()
}

// HasUnion reports whether any element still needs expansion.
func (s Signature) HasUnion() bool {
	for _, e := range s.elems {
		if e.kind == KindUnion {
			return true
		}
	}
	return false
}

// ConcreteTags returns the tags of a signature made only of concrete
// elements; ok is false otherwise.
func (s Signature) ConcreteTags() (tags []typetag.Tag, ok bool) {
	tags = make([]typetag.Tag, len(s.elems))
	for i, e := range s.elems {
		if e.kind != KindConcrete {
			return nil, false
		}
		tags[i] = e.tags[0]
	}
	return tags, true
}

func (s Signature) render() string {
	parts := make([]string, len(s.elems))
	for i, e := range s.elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks structure and that every tag is known to rel.
func (s Signature) Validate(rel typetag.Provider) error {
	for i, e := range s.elems {
		switch e.kind {
		case KindVariadic:
			if len(e.tags) == 0 {
				return fmt.Errorf("position %d: %w", i, ErrEmptyVariadic)
			}
			if i != len(s.elems)-1 {
				return fmt.Errorf("position %d: %w", i, ErrVariadicNotLast)
			}
		case KindUnion:
			if len(e.tags) == 0 {
				return fmt.Errorf("position %d: %w", i, ErrEmptyUnion)
			}
		}
		for _, t := range e.tags {
			if !rel.Known(t) {
				return fmt.Errorf("position %d: %w: %s", i, ErrUnknownTag, t)
			}
		}
	}
	return nil
}

// Expand replaces every union element by each of its alternatives, giving
// the Cartesian product in declaration order. A signature without unions
// expands to itself.
func Expand(s Signature) []Signature {
	out := [][]Element{{}}
	for _, e := range s.elems {
		if e.kind != KindUnion {
			for i := range out {
				out[i] = append(out[i], e)
			}
			continue
		}
		next := make([][]Element, 0, len(out)*len(e.tags))
		for _, prefix := range out {
			for _, t := range e.tags {
				row := append(slices.Clone(prefix), Of(t))
				next = append(next, row)
			}
		}
		out = next
	}
	sigs := make([]Signature, len(out))
	for i, row := range out {
		sigs[i] = New(row...)
	}
	return sigs
}

// Matches reports whether a call with the given argument types can be
// dispatched to s. A trailing variadic absorbs any excess arguments.
func (s Signature) Matches(rel typetag.Provider, args []typetag.Tag) bool {
	n := len(s.elems)
	if !s.IsVariadic() {
		if len(args) != n {
			return false
		}
		for i, a := range args {
			if !s.elems[i].accepts(rel, a) {
				return false
			}
		}
		return true
	}

	fixed := n - 1
	if len(args) < fixed {
		return false
	}
	tail := s.elems[fixed]
	for i, a := range args {
		e := tail
		if i < fixed {
			e = s.elems[i]
		}
		if !e.accepts(rel, a) {
			return false
		}
	}
	return true
}

// ExactlyMatches reports whether args are the concrete tags of s.
func (s Signature) ExactlyMatches(args []typetag.Tag) bool {
	tags, ok := s.ConcreteTags()
	return ok && slices.Equal(tags, args)
}

// KeyOf returns the key a concrete signature over args would have.
func KeyOf(args []typetag.Tag) string {
	return typetag.Join(args)
}
