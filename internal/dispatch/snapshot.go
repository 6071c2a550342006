package dispatch

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Catalog maps variant names onto implementations when a snapshot is
// replayed.
type Catalog map[string]Func

// Snapshot is the persistable state of a registry. Only signatures and
// variant names are recorded; the ordering is kept so a replay can be
// compared with what was saved.
type Snapshot struct {
	Operation string          `yaml:"operation" json:"operation"`
	Method    bool            `yaml:"method,omitempty" json:"method,omitempty"`
	Entries   []SnapshotEntry `yaml:"entries" json:"entries"`
	Ordering  []string        `yaml:"ordering,omitempty" json:"ordering,omitempty"`
}

// SnapshotEntry is one expanded signature and the name of its variant.
type SnapshotEntry struct {
	Signature string `yaml:"signature" json:"signature"`
	Variant   string `yaml:"variant" json:"variant"`
}

// Snapshot captures the registry. Entries are sorted by signature key.
func (r *Registry) Snapshot() Snapshot {
	t := r.current.Load()
	snap := Snapshot{Operation: r.name, Method: r.method}
	for _, key := range slices.Sorted(maps.Keys(t.variants)) {
		snap.Entries = append(snap.Entries, SnapshotEntry{
			Signature: key,
			Variant:   t.variants[key].Name,
		})
	}
	for _, s := range t.ordering {
		snap.Ordering = append(snap.Ordering, s.Key())
	}
	return snap
}

// Replay registers every entry of snap in one batch. The resulting ordering
// does not depend on the order of snap.Entries.
func (r *Registry) Replay(snap Snapshot, catalog Catalog) error {
	entries := make([]Entry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		sig, err := signature.Parse(e.Signature)
		if err != nil {
			return &InvalidSignatureError{Operation: r.name, Err: err}
		}
		fn, ok := catalog[e.Variant]
		if !ok {
			return fmt.Errorf("%s [%s]: %w: %s", r.name, sig, ErrUnknownVariant, e.Variant)
		}
		entries = append(entries, Entry{Signature: sig, Name: e.Variant, Fn: fn})
	}
	return r.AddBatch(entries...)
}

// Restore builds a new registry from snap.
func Restore(snap Snapshot, rel typetag.Provider, catalog Catalog, opts ...Option) (*Registry, error) {
	if snap.Method {
		opts = append(slices.Clone(opts), WithMethod())
	}
	r := New(snap.Operation, rel, opts...)
	if err := r.Replay(snap, catalog); err != nil {
		return nil, err
	}
	return r, nil
}

// SnapshotStore persists snapshots by operation.
type SnapshotStore interface {
	// Save records snap and returns its GUID.
	Save(snap Snapshot) (string, error)
	// Latest returns the newest snapshot of operation. A missing snapshot
	// is an error wrapping ErrSnapshotNotFound.
	Latest(operation string) (*Snapshot, error)
	// Operations lists the operations that have a snapshot, sorted.
	Operations() ([]string, error)
}
