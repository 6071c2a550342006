// Package dispatch resolves a call to the most specific registered variant
// of an operation, given the type tags of its arguments.
package dispatch

import (
	"context"

	"github.com/zjrosen/multidispatch/internal/signature"
)

// Func is a variant implementation. For method registries args[0] is the
// receiver.
type Func func(ctx context.Context, args ...any) (any, error)

// Variant is one implementation bound to one expanded signature. A
// registration with unions produces several variants sharing Name and Fn.
type Variant struct {
	Name      string
	Signature signature.Signature
	// Declared is the signature as registered, before union expansion.
	Declared signature.Signature
	Fn       Func
}

// Entry is one registration of a batch.
type Entry struct {
	Signature signature.Signature
	Name      string
	Fn        Func
}
