package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/schemagate/domain/snapshot"
	"github.com/artpar/schemagate/ports"
)

// SnapshotStore implements ports.SnapshotStore using SQLite.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save stores a snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, api, format, digest, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.API, snap.Format, snap.Digest, snap.Document, snap.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot for an API and format.
func (s *SnapshotStore) Latest(ctx context.Context, api, format string) (snapshot.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, api, format, digest, document, created_at
		FROM snapshots
		WHERE api = ? AND format = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, api, format)

	snap, err := scanSnapshot(row)
	if errors.Is(err, snapshot.ErrNotFound) {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Get retrieves a snapshot by ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (snapshot.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, api, format, digest, document, created_at
		FROM snapshots
		WHERE id = ?
	`, id)

	return scanSnapshot(row)
}

// List returns snapshots matching the filter, newest first.
func (s *SnapshotStore) List(ctx context.Context, f snapshot.Filter) ([]snapshot.Snapshot, error) {
	var (
		where []string
		args  []any
	)
	if f.API != "" {
		where = append(where, "api = ?")
		args = append(args, f.API)
	}
	if f.Format != "" {
		where = append(where, "format = ?")
		args = append(args, f.Format)
	}

	query := "SELECT id, api, format, digest, document, created_at FROM snapshots"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []snapshot.Snapshot
	for rows.Next() {
		var snap snapshot.Snapshot
		if err := rows.Scan(&snap.ID, &snap.API, &snap.Format, &snap.Digest, &snap.Document, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row *sql.Row) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	err := row.Scan(&snap.ID, &snap.API, &snap.Format, &snap.Digest, &snap.Document, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
