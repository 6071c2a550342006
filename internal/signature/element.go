// Package signature models dispatch signatures: ordered tuples of type-tag
// patterns, and the specificity relations between them.
package signature

import (
	"slices"
	"strings"

	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Kind distinguishes the three element forms.
type Kind int

const (
	KindConcrete Kind = iota
	KindUnion
	KindVariadic
)

func (k Kind) String() string {
	switch k {
	case KindConcrete:
		return "concrete"
	case KindUnion:
		return "union"
	case KindVariadic:
		return "variadic"
	default:
		return "unknown"
	}
}

// Element is one position of a Signature.
type Element struct {
	kind Kind
	tags []typetag.Tag // sorted and deduplicated for union and variadic
}

// Of returns a concrete element.
func Of(t typetag.Tag) Element {
	return Element{kind: KindConcrete, tags: []typetag.Tag{t}}
}

// Union returns an element matching any one of tags. A union of a single
// tag collapses to a concrete element.
func Union(tags ...typetag.Tag) Element {
	set := normalize(tags)
	if len(set) == 1 {
		return Of(set[0])
	}
	return Element{kind: KindUnion, tags: set}
}

// Variadic returns an element matching zero or more trailing arguments,
// each of which must match one of tags.
func Variadic(tags ...typetag.Tag) Element {
	return Element{kind: KindVariadic, tags: normalize(tags)}
}

func normalize(tags []typetag.Tag) []typetag.Tag {
	set := slices.Clone(tags)
	slices.Sort(set)
	return slices.Compact(set)
}

// Kind returns the element form.
func (e Element) Kind() Kind { return e.kind }

// IsVariadic reports whether e is a variadic marker.
func (e Element) IsVariadic() bool { return e.kind == KindVariadic }

// Tags returns the element's alternatives.
func (e Element) Tags() []typetag.Tag { return slices.Clone(e.tags) }

// Tag returns the single tag of a concrete element.
func (e Element) Tag() typetag.Tag {
	if e.kind != KindConcrete || len(e.tags) == 0 {
		return ""
	}
	return e.tags[0]
}

// Equal reports structural equality.
func (e Element) Equal(o Element) bool {
	return e.kind == o.kind && slices.Equal(e.tags, o.tags)
}

// VariadicPrefix marks a variadic element in signature text.
const VariadicPrefix = "..."

// String renders the element in signature text form:
// "A", "(A|B)", "...A", "...(A|B)".
func (e Element) String() string {
	var b strings.Builder
	if e.kind == KindVariadic {
		b.WriteString(VariadicPrefix)
	}
	if len(e.tags) == 1 {
		b.WriteString(string(e.tags[0]))
		return b.String()
	}
	b.WriteByte('(')
	for i, t := range e.tags {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(string(t))
	}
	b.WriteByte(')')
	return b.String()
}

// accepts reports whether an argument of type arg satisfies e.
func (e Element) accepts(rel typetag.Provider, arg typetag.Tag) bool {
	for _, t := range e.tags {
		if rel.IsSubtype(arg, t) {
			return true
		}
	}
	return false
}

// isSub is the element-level subtype relation used by Supersedes.
func isSub(rel typetag.Provider, x, y Element) bool {
	switch {
	case x.kind == KindVariadic && y.kind == KindVariadic:
		for _, xt := range x.tags {
			if !y.accepts(rel, xt) {
				return false
			}
		}
		return true
	case x.kind == KindVariadic:
		return false
	case y.kind == KindVariadic:
		return y.accepts(rel, x.tags[0])
	default:
		return rel.IsSubtype(x.tags[0], y.tags[0])
	}
}

// overlaps reports whether some single argument type could satisfy both a
// concrete element and e.
func overlaps(rel typetag.Provider, concrete typetag.Tag, e Element) bool {
	for _, t := range e.tags {
		if rel.IsSubtype(concrete, t) || rel.IsSubtype(t, concrete) {
			return true
		}
	}
	return false
}
