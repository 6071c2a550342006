package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/multidispatch/internal/dispatch"
	"github.com/zjrosen/multidispatch/internal/log"
)

const snapshotColumns = `id, guid, operation, method, ordering, created_at`

// SnapshotRepository stores dispatch snapshots. Every Save adds a new
// version; Latest returns the most recent one per operation.
type SnapshotRepository struct {
	db  *sql.DB
	now func() time.Time
}

func newSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db, now: time.Now}
}

func scanSnapshot(scanner interface{ Scan(...any) error }) (*SnapshotModel, error) {
	var model SnapshotModel
	err := scanner.Scan(&model.ID, &model.GUID, &model.Operation, &model.Method, &model.Ordering, &model.CreatedAt)
	return &model, err
}

// Save inserts snap with its entries in one transaction and returns the new
// snapshot GUID.
func (r *SnapshotRepository) Save(snap dispatch.Snapshot) (string, error) {
	guid := uuid.New().String()
	model, err := toSnapshotModel(guid, snap, r.now())
	if err != nil {
		return "", fmt.Errorf("failed to encode ordering: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(
		`INSERT INTO snapshots (guid, operation, method, ordering, created_at) VALUES (?, ?, ?, ?, ?)`,
		model.GUID, model.Operation, model.Method, model.Ordering, model.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, e := range model.Entries {
		if _, err := tx.Exec(
			`INSERT INTO snapshot_entries (snapshot_id, position, signature, variant) VALUES (?, ?, ?, ?)`,
			id, i, e.Signature, e.Variant,
		); err != nil {
			return "", fmt.Errorf("failed to insert snapshot entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	log.Debug(log.CatStore, "Saved snapshot", "operation", snap.Operation, "guid", guid, "entries", len(model.Entries))
	return guid, nil
}

// Latest returns the newest snapshot of operation.
func (r *SnapshotRepository) Latest(operation string) (*dispatch.Snapshot, error) {
	row := r.db.QueryRow(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE operation = ? ORDER BY id DESC LIMIT 1`,
		operation,
	)
	return r.load(row, operation)
}

// FindByGUID returns the snapshot with the given GUID.
func (r *SnapshotRepository) FindByGUID(guid string) (*dispatch.Snapshot, error) {
	row := r.db.QueryRow(`SELECT `+snapshotColumns+` FROM snapshots WHERE guid = ?`, guid)
	return r.load(row, guid)
}

func (r *SnapshotRepository) load(row *sql.Row, key string) (*dispatch.Snapshot, error) {
	model, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrSnapshotNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}
	if model.Entries, err = r.entries(model.ID); err != nil {
		return nil, err
	}
	snap, err := model.toDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode ordering: %w", err)
	}
	return snap, nil
}

func (r *SnapshotRepository) entries(id int64) ([]dispatch.SnapshotEntry, error) {
	rows, err := r.db.Query(
		`SELECT signature, variant FROM snapshot_entries WHERE snapshot_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []dispatch.SnapshotEntry
	for rows.Next() {
		var e dispatch.SnapshotEntry
		if err := rows.Scan(&e.Signature, &e.Variant); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot entries: %w", err)
	}
	return entries, nil
}

// Operations returns every operation with at least one snapshot, sorted.
func (r *SnapshotRepository) Operations() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT operation FROM snapshots ORDER BY operation`)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []string
	for rows.Next() {
		var op string
		if err := rows.Scan(&op); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

// History lists the snapshots of operation, newest first. A positive limit
// caps the result.
func (r *SnapshotRepository) History(operation string, limit int) ([]SnapshotInfo, error) {
	query := `SELECT s.guid, s.operation, s.created_at,
		(SELECT COUNT(*) FROM snapshot_entries e WHERE e.snapshot_id = s.id)
		FROM snapshots s WHERE s.operation = ? ORDER BY s.id DESC`
	args := []any{operation}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []SnapshotInfo
	for rows.Next() {
		var (
			info    SnapshotInfo
			created int64
		)
		if err := rows.Scan(&info.GUID, &info.Operation, &created, &info.Entries); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.CreatedAt = time.Unix(created, 0)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return infos, nil
}

// DeleteOperation removes every snapshot of operation and reports how many
// were deleted.
func (r *SnapshotRepository) DeleteOperation(operation string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM snapshots WHERE operation = ?`, operation)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
