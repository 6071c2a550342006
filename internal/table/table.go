// Package table loads dispatch tables from YAML. A table declares a type
// hierarchy and the variants of each operation by signature text:
//
//	types:
//	  - name: Number
//	  - name: Int
//	    parents: [Number]
//	    go: [int, int64]
//	operations:
//	  - name: describe
//	    variants:
//	      - name: describeInt
//	        signature: Int
//	      - name: describePair
//	        signature: [Number, ...Number]
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/multidispatch/internal/log"
)

// Table errors
var (
	ErrDuplicateType      = errors.New("type declared twice")
	ErrDuplicateOperation = errors.New("operation declared twice")
	ErrMissingName        = errors.New("name is required")
	ErrUnknownGoType      = errors.New("unknown go type binding")
)

// File is the root structure of a dispatch table.
type File struct {
	Types      []TypeDef      `yaml:"types"`
	Operations []OperationDef `yaml:"operations"`
}

// TypeDef declares one type tag.
type TypeDef struct {
	Name    string   `yaml:"name"`
	Parents []string `yaml:"parents,omitempty"` // Most significant first
	Go      []string `yaml:"go,omitempty"`      // Go types classified as this tag, e.g. "int"
}

// OperationDef declares one dispatched operation.
type OperationDef struct {
	Name     string       `yaml:"name"`
	Method   bool         `yaml:"method,omitempty"`
	Variants []VariantDef `yaml:"variants"`
}

// VariantDef binds a variant name to a signature.
type VariantDef struct {
	Name      string        `yaml:"name"`
	Signature SignatureText `yaml:"signature"`
}

// SignatureText is signature text. In YAML it may be written either as one
// string ("Int, ...Number") or as a list of elements.
type SignatureText string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (s *SignatureText) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = SignatureText(node.Value)
		return nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: signature elements must be scalars", item.Line)
			}
			parts = append(parts, item.Value)
		}
		*s = SignatureText(strings.Join(parts, ", "))
		return nil
	default:
		return fmt.Errorf("line %d: signature must be a string or a list", node.Line)
	}
}

// Parse decodes a table. Unknown fields are rejected.
func Parse(content []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the table at path.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's table file
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CatTable, "Loaded table", "path", path, "types", len(f.Types), "operations", len(f.Operations))
	return f, nil
}

// LoadFS reads and parses name from fsys.
func LoadFS(fsys fs.FS, name string) (*File, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	f, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// Validate checks names and uniqueness. Type relationships and signatures
// are checked when the table is built.
func (f *File) Validate() error {
	types := make(map[string]bool, len(f.Types))
	for i, td := range f.Types {
		if td.Name == "" {
			return fmt.Errorf("types[%d]: %w", i, ErrMissingName)
		}
		if types[td.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateType, td.Name)
		}
		types[td.Name] = true
		for _, g := range td.Go {
			if _, ok := goSamples[g]; !ok {
				return fmt.Errorf("type %s: %w: %s", td.Name, ErrUnknownGoType, g)
			}
		}
	}

	ops := make(map[string]bool, len(f.Operations))
	for i, od := range f.Operations {
		if od.Name == "" {
			return fmt.Errorf("operations[%d]: %w", i, ErrMissingName)
		}
		if ops[od.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateOperation, od.Name)
		}
		ops[od.Name] = true
		for j, vd := range od.Variants {
			if vd.Name == "" {
				return fmt.Errorf("operation %s variants[%d]: %w", od.Name, j, ErrMissingName)
			}
		}
	}
	return nil
}

// Operation returns the named operation definition.
func (f *File) Operation(name string) (OperationDef, bool) {
	for _, od := range f.Operations {
		if od.Name == name {
			return od, true
		}
	}
	return OperationDef{}, false
}
