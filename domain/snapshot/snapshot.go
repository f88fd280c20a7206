// Package snapshot describes rendered schema documents kept for history.
package snapshot

import (
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned when no snapshot has the requested ID.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one rendered document of an API in one export format.
type Snapshot struct {
	ID        string
	API       string // name:version
	Format    string
	Digest    string // hex blake2b-256 of Document
	Document  []byte
	CreatedAt time.Time
}

// Digest returns the hex blake2b-256 digest of doc.
func Digest(doc []byte) string {
	sum := blake2b.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// New builds a snapshot and computes its digest.
func New(id, api, format string, doc []byte, at time.Time) Snapshot {
	return Snapshot{
		ID:        id,
		API:       api,
		Format:    format,
		Digest:    Digest(doc),
		Document:  doc,
		CreatedAt: at,
	}
}

// Same reports whether s carries the same document as o.
func (s Snapshot) Same(o Snapshot) bool {
	return s.API == o.API && s.Format == o.Format && s.Digest == o.Digest
}

// Filter narrows snapshot listings. Zero values match everything.
type Filter struct {
	API    string
	Format string
	Limit  int
}
