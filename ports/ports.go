// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/schemagate/domain/snapshot"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SnapshotStore persists rendered schema documents.
type SnapshotStore interface {
	// Save stores a snapshot.
	Save(ctx context.Context, s snapshot.Snapshot) error

	// Latest returns the newest snapshot for an API and format.
	Latest(ctx context.Context, api, format string) (snapshot.Snapshot, bool, error)

	// List returns snapshots matching the filter, newest first.
	List(ctx context.Context, f snapshot.Filter) ([]snapshot.Snapshot, error)

	// Get retrieves a snapshot by ID.
	Get(ctx context.Context, id string) (snapshot.Snapshot, error)
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// DerivationObserver receives schema repository events.
type DerivationObserver interface {
	// SchemaDerived is called once per newly registered schema.
	SchemaDerived(api, shape string, d time.Duration)

	// CacheLookup is called for every top-level derivation request.
	CacheLookup(api string, hit bool)

	// UnsupportedType is called when a derivation is rejected.
	UnsupportedType(api string)

	// MapFallback is called when a map degrades to the opaque map schema.
	MapFallback(api, reason string)
}

// RenderObserver receives document rendering events.
type RenderObserver interface {
	// DocumentRendered is called after every render attempt.
	DocumentRendered(api, format string, d time.Duration, err error)
}
