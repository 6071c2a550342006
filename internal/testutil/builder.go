// Package testutil provides fixtures for dispatch tests: type hierarchies,
// tagged values and an in-memory database.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/multidispatch/internal/typetag"
)

// binding holds a Go type sample to be bound to a tag.
type binding struct {
	sample any
	tag    typetag.Tag
}

// Builder accumulates type declarations and declares them in order.
type Builder struct {
	t        *testing.T
	types    []typeData
	bindings []binding
}

// NewBuilder creates a hierarchy builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithType adds a type with optional configuration.
func (b *Builder) WithType(tag typetag.Tag, opts ...TypeOption) *Builder {
	td := typeData{tag: tag}
	for _, opt := range opts {
		opt(&td)
	}
	b.types = append(b.types, td)
	return b
}

// WithBinding maps the Go type of sample onto tag.
func (b *Builder) WithBinding(sample any, tag typetag.Tag) *Builder {
	b.bindings = append(b.bindings, binding{sample: sample, tag: tag})
	return b
}

// Build declares all accumulated types. Parents must be added before their
// children.
func (b *Builder) Build() *typetag.Hierarchy {
	b.t.Helper()
	h := typetag.NewHierarchy()
	for _, td := range b.types {
		require.NoError(b.t, h.Declare(td.tag, td.parents...), "declare %s", td.tag)
		for _, sample := range td.samples {
			require.NoError(b.t, h.Bind(sample, td.tag), "bind %T to %s", sample, td.tag)
		}
	}
	for _, bd := range b.bindings {
		require.NoError(b.t, h.Bind(bd.sample, bd.tag), "bind %T to %s", bd.sample, bd.tag)
	}
	return h
}
