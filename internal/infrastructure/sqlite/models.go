package sqlite

import (
	"encoding/json"
	"time"

	"github.com/zjrosen/multidispatch/internal/dispatch"
)

// SnapshotModel is a row of the snapshots table joined with its entries.
type SnapshotModel struct {
	ID        int64
	GUID      string
	Operation string
	Method    bool
	Ordering  string // JSON array of signature keys
	CreatedAt int64  // Unix timestamp
	Entries   []dispatch.SnapshotEntry
}

// SnapshotInfo describes a stored snapshot without its entries.
type SnapshotInfo struct {
	GUID      string
	Operation string
	Entries   int
	CreatedAt time.Time
}

func toSnapshotModel(guid string, snap dispatch.Snapshot, now time.Time) (*SnapshotModel, error) {
	ordering := snap.Ordering
	if ordering == nil {
		ordering = []string{}
	}
	data, err := json.Marshal(ordering)
	if err != nil {
		return nil, err
	}
	return &SnapshotModel{
		GUID:      guid,
		Operation: snap.Operation,
		Method:    snap.Method,
		Ordering:  string(data),
		CreatedAt: now.Unix(),
		Entries:   snap.Entries,
	}, nil
}

func (m *SnapshotModel) toDomain() (*dispatch.Snapshot, error) {
	var ordering []string
	if err := json.Unmarshal([]byte(m.Ordering), &ordering); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		ordering = nil
	}
	return &dispatch.Snapshot{
		Operation: m.Operation,
		Method:    m.Method,
		Entries:   m.Entries,
		Ordering:  ordering,
	}, nil
}
