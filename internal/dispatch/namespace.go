package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Namespace is an explicit collection of registries keyed by operation
// name. Registries in a namespace share a provider and options. There is
// no default namespace.
type Namespace struct {
	rel  typetag.Provider
	opts []Option

	mu         sync.RWMutex
	registries map[string]*Registry
}

// NewNamespace creates an empty namespace.
func NewNamespace(rel typetag.Provider, opts ...Option) *Namespace {
	return &Namespace{
		rel:        rel,
		opts:       opts,
		registries: make(map[string]*Registry),
	}
}

// Provider returns the namespace's type relation.
func (n *Namespace) Provider() typetag.Provider { return n.rel }

// Registry returns the registry for op, creating it if needed.
func (n *Namespace) Registry(op string) *Registry {
	return n.registry(op, false)
}

// Method returns the method registry for op, creating it if needed. An
// existing registry is returned as is.
func (n *Namespace) Method(op string) *Registry {
	return n.registry(op, true)
}

func (n *Namespace) registry(op string, method bool) *Registry {
	n.mu.RLock()
	r, ok := n.registries[op]
	n.mu.RUnlock()
	if ok {
		return r
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.registries[op]; ok {
		return r
	}
	opts := slices.Clone(n.opts)
	if method {
		opts = append(opts, WithMethod())
	}
	r = New(op, n.rel, opts...)
	n.registries[op] = r
	return r
}

// Lookup returns the registry for op without creating it.
func (n *Namespace) Lookup(op string) (*Registry, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.registries[op]
	return r, ok
}

// Add registers a variant of op.
func (n *Namespace) Add(op string, sig signature.Signature, name string, fn Func) error {
	return n.Registry(op).Add(sig, name, fn)
}

// Register registers a variant of op from elements.
func (n *Namespace) Register(op, name string, fn Func, elems ...signature.Element) error {
	return n.Registry(op).Register(name, fn, elems...)
}

// Operations returns the operation names, sorted.
func (n *Namespace) Operations() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ops := make([]string, 0, len(n.registries))
	for op := range n.registries {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Call dispatches a call to op.
func (n *Namespace) Call(ctx context.Context, op string, args ...any) (any, error) {
	r, ok := n.Lookup(op)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return r.Call(ctx, args...)
}

// Snapshots captures every registry, sorted by operation.
func (n *Namespace) Snapshots() []Snapshot {
	ops := n.Operations()
	snaps := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		r, _ := n.Lookup(op)
		snaps = append(snaps, r.Snapshot())
	}
	return snaps
}

// Replay restores snap into the namespace, honouring its method flag.
func (n *Namespace) Replay(snap Snapshot, catalog Catalog) error {
	return n.registry(snap.Operation, snap.Method).Replay(snap, catalog)
}

// Save writes a snapshot of every registry to store.
func (n *Namespace) Save(store SnapshotStore) error {
	for _, snap := range n.Snapshots() {
		if _, err := store.Save(snap); err != nil {
			return fmt.Errorf("saving %s: %w", snap.Operation, err)
		}
	}
	return nil
}

// Load replays the latest stored snapshot of every operation in store.
func (n *Namespace) Load(store SnapshotStore, catalog Catalog) error {
	ops, err := store.Operations()
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	for _, op := range ops {
		snap, err := store.Latest(op)
		if err != nil {
			return fmt.Errorf("loading %s: %w", op, err)
		}
		if err := n.Replay(*snap, catalog); err != nil {
			return err
		}
	}
	return nil
}
