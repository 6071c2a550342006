// Package typetag defines the type-tag vocabulary the dispatcher reasons over.
//
// A Tag is an opaque identifier for a runtime type. The dispatcher never
// builds type hierarchies itself; it asks a Provider whether one tag is a
// subtype of another and for a tag's specificity chain.
package typetag

import (
	"errors"
	"strings"
)

// Tag identifies a runtime type.
type Tag string

// Any is the implicit top of every provider's lattice.
const Any Tag = "any"

// Provider errors
var (
	ErrUnknownTag       = errors.New("unknown type tag")
	ErrDuplicateTag     = errors.New("type tag already declared")
	ErrInconsistentMRO  = errors.New("cannot linearize type hierarchy")
	ErrUnclassifiable   = errors.New("value has no type tag")
	ErrNotAnInterface   = errors.New("type is not an interface")
	ErrEmptyTagName     = errors.New("type tag name is empty")
	ErrReservedTagName  = errors.New("type tag name is reserved")
	ErrInvalidTagSyntax = errors.New("type tag contains reserved characters")
)

// Provider supplies the subtype relation and specificity chains.
type Provider interface {
	// Known reports whether t is a recognized tag.
	Known(t Tag) bool
	// IsSubtype reports whether sub is sub equal to or a subtype of super.
	IsSubtype(sub, super Tag) bool
	// Chain returns the linearized ancestors of t, most specific first,
	// starting with t itself. Unknown tags return nil.
	Chain(t Tag) []Tag
}

// Classifier maps runtime values onto tags.
type Classifier interface {
	TagOf(v any) (Tag, error)
}

// Tagged lets a value report its own tag to a Hierarchy.
type Tagged interface {
	DispatchTag() Tag
}

// Join renders tags as a comma separated list.
func Join(tags []Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// ValidName reports whether name can be used as a tag in signature text.
func ValidName(name string) error {
	if name == "" {
		return ErrEmptyTagName
	}
	if strings.ContainsAny(name, ",|()\n") || strings.HasPrefix(name, "...") {
		return ErrInvalidTagSyntax
	}
	return nil
}
