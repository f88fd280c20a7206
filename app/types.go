package app

import (
	"time"

	"github.com/artpar/schemagate/adapters/gotype"
	"github.com/artpar/schemagate/core/schema"
	"github.com/artpar/schemagate/domain/typedesc"
)

// SelfAPI is the namespace describing the service's own response types.
var SelfAPI = schema.APIKey{Name: "schemagate", Version: "v1"}

// APIStatus is the derivation outcome of an API.
type APIStatus string

const (
	StatusOK       APIStatus = "ok"
	StatusDegraded APIStatus = "degraded"
)

// EnumConstants implements typedesc.Enumerated.
func (APIStatus) EnumConstants() []typedesc.EnumConstant {
	return []typedesc.EnumConstant{
		{Name: "OK", WireName: string(StatusOK), Description: "Every root derived"},
		{Name: "DEGRADED", WireName: string(StatusDegraded), Description: "At least one root failed to derive"},
	}
}

// APISummary describes one API namespace of the current generation.
type APISummary struct {
	Name        string    `json:"name" schema:"required"`
	Version     string    `json:"version" schema:"required"`
	Root        string    `json:"root,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      APIStatus `json:"status" schema:"required"`
	Schemas     []string  `json:"schemas" schema:"description=Schema names in registration order"`
	Errors      []string  `json:"errors,omitempty"`
	Formats     []string  `json:"formats"`
}

// Key returns the API key of the summary.
func (s APISummary) Key() schema.APIKey {
	return schema.APIKey{Name: s.Name, Version: s.Version, Root: s.Root}
}

// SnapshotSummary lists a stored snapshot without its document.
type SnapshotSummary struct {
	ID        string    `json:"id" schema:"required"`
	API       string    `json:"api" schema:"required"`
	Format    string    `json:"format" schema:"required"`
	Digest    string    `json:"digest" schema:"description=Hex blake2b-256 of the document"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// selfRoots are the response types documented under SelfAPI.
func selfRoots() []typedesc.Type {
	return []typedesc.Type{
		gotype.Of[APISummary](),
		gotype.Of[[]APISummary](),
		gotype.Of[gotype.Page[SnapshotSummary]](),
	}
}
