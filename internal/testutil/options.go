package testutil

import "github.com/zjrosen/multidispatch/internal/typetag"

// typeData holds one declaration.
type typeData struct {
	tag     typetag.Tag
	parents []typetag.Tag
	samples []any
}

// TypeOption configures a declaration.
type TypeOption func(*typeData)

// Parents sets the direct parents, most significant first.
func Parents(parents ...typetag.Tag) TypeOption {
	return func(td *typeData) {
		td.parents = append(td.parents, parents...)
	}
}

// BoundTo binds the Go types of samples to the declared tag.
func BoundTo(samples ...any) TypeOption {
	return func(td *typeData) {
		td.samples = append(td.samples, samples...)
	}
}

// Value is a dispatch argument carrying an explicit tag.
type Value struct {
	Tag  typetag.Tag
	Data any
}

// DispatchTag implements typetag.Tagged.
func (v Value) DispatchTag() typetag.Tag { return v.Tag }

// Val creates a tagged value with no payload.
func Val(tag typetag.Tag) Value {
	return Value{Tag: tag}
}

// Tags converts names to tags.
func Tags(names ...string) []typetag.Tag {
	out := make([]typetag.Tag, len(names))
	for i, n := range names {
		out[i] = typetag.Tag(n)
	}
	return out
}
