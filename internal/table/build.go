package table

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// goSamples are the Go types a table may bind to a tag.
var goSamples = map[string]any{
	"bool":           false,
	"string":         "",
	"int":            0,
	"int8":           int8(0),
	"int16":          int16(0),
	"int32":          int32(0),
	"int64":          int64(0),
	"uint":           uint(0),
	"uint8":          uint8(0),
	"uint16":         uint16(0),
	"uint32":         uint32(0),
	"uint64":         uint64(0),
	"float32":        float32(0),
	"float64":        float64(0),
	"[]any":          []any(nil),
	"map[string]any": map[string]any(nil),
}

// Hierarchy declares the table's types in order. A parent must appear
// before its children.
func (f *File) Hierarchy() (*typetag.Hierarchy, error) {
	h := typetag.NewHierarchy()
	for _, td := range f.Types {
		parents := make([]typetag.Tag, len(td.Parents))
		for i, p := range td.Parents {
			parents[i] = typetag.Tag(p)
		}
		if err := h.Declare(typetag.Tag(td.Name), parents...); err != nil {
			return nil, fmt.Errorf("type %s: %w", td.Name, err)
		}
		for _, g := range td.Go {
			sample, ok := goSamples[g]
			if !ok {
				return nil, fmt.Errorf("type %s: %w: %s", td.Name, ErrUnknownGoType, g)
			}
			if err := h.Bind(sample, typetag.Tag(td.Name)); err != nil {
				return nil, fmt.Errorf("type %s: %w", td.Name, err)
			}
		}
	}
	return h, nil
}

// Entries parses the variants of od against catalog. A nil catalog uses
// Stubs.
func (od OperationDef) Entries(catalog dispatch.Catalog) ([]dispatch.Entry, error) {
	entries := make([]dispatch.Entry, 0, len(od.Variants))
	for _, vd := range od.Variants {
		sig, err := signature.Parse(string(vd.Signature))
		if err != nil {
			return nil, &dispatch.InvalidSignatureError{Operation: od.Name, Err: err}
		}
		fn := stub(vd.Name)
		if catalog != nil {
			var ok bool
			if fn, ok = catalog[vd.Name]; !ok {
				return nil, fmt.Errorf("%s [%s]: %w: %s", od.Name, sig, dispatch.ErrUnknownVariant, vd.Name)
			}
		}
		entries = append(entries, dispatch.Entry{Signature: sig, Name: vd.Name, Fn: fn})
	}
	return entries, nil
}

// Build declares the hierarchy and registers every operation in a new
// namespace. Each operation is added as one batch.
func (f *File) Build(catalog dispatch.Catalog, opts ...dispatch.Option) (*typetag.Hierarchy, *dispatch.Namespace, error) {
	h, err := f.Hierarchy()
	if err != nil {
		return nil, nil, err
	}
	ns := dispatch.NewNamespace(h, opts...)
	if err := f.Register(ns, catalog); err != nil {
		return nil, nil, err
	}
	return h, ns, nil
}

// Register adds the table's operations to an existing namespace.
func (f *File) Register(ns *dispatch.Namespace, catalog dispatch.Catalog) error {
	for _, od := range f.Operations {
		entries, err := od.Entries(catalog)
		if err != nil {
			return err
		}
		var r *dispatch.Registry
		if od.Method {
			r = ns.Method(od.Name)
		} else {
			r = ns.Registry(od.Name)
		}
		if err := r.AddBatch(entries...); err != nil {
			return err
		}
	}
	return nil
}

// Stubs returns a catalog whose variants return their own name. It lets a
// table be resolved and called without real implementations.
func (f *File) Stubs() dispatch.Catalog {
	c := make(dispatch.Catalog)
	for _, od := range f.Operations {
		for _, vd := range od.Variants {
			c[vd.Name] = stub(vd.Name)
		}
	}
	return c
}

func stub(name string) dispatch.Func {
	return func(context.Context, ...any) (any, error) { return name, nil }
}

// FromSnapshots builds a table from type declarations and registry
// snapshots. Union registrations come back expanded.
func FromSnapshots(types []TypeDef, snaps []dispatch.Snapshot) *File {
	f := &File{Types: slices.Clone(types)}
	for _, snap := range snaps {
		od := OperationDef{Name: snap.Operation, Method: snap.Method}
		for _, e := range snap.Entries {
			od.Variants = append(od.Variants, VariantDef{Name: e.Variant, Signature: SignatureText(e.Signature)})
		}
		f.Operations = append(f.Operations, od)
	}
	return f
}

// Write encodes f as YAML.
func Write(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	return enc.Close()
}

// Save writes f to path.
func Save(path string, f *File) error {
	out, err := os.Create(path) //nolint:gosec // G304: path is the user's table file
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(out, f); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
