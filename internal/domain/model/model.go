// Package model holds Model: an operator-defined printable item definition.
package model

import (
	"time"

	"github.com/printfleet/printfleet/internal/domain/shared"
)

// ColorRequirement is one slot's material and gram need, keyed by slot
// index in Model.ColorRequirements.
type ColorRequirement struct {
	Color string
	Grams float64
}

// Model is a printable item definition created by an operator.
type Model struct {
	ID                 int64
	DisplayName        string
	EstimatedBuildSec  int64
	DefaultMaterial    string
	ColorRequirements  map[int]ColorRequirement // slot_index -> requirement
	ThumbnailPath      *string
	ArtifactID         *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// New constructs a Model with an empty color-requirement map.
func New(displayName, defaultMaterial string, estimatedBuildSec int64, clock shared.Clock) (*Model, error) {
	if displayName == "" {
		return nil, shared.NewValidationError("display_name", "must not be empty")
	}
	now := clock.Now()
	return &Model{
		DisplayName:       displayName,
		DefaultMaterial:   defaultMaterial,
		EstimatedBuildSec: estimatedBuildSec,
		ColorRequirements: make(map[int]ColorRequirement),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// RequiredColors returns the distinct color set across all slot requirements,
// used by the Scheduler to count distinct colors a Job needs.
func (m *Model) RequiredColors() []string {
	seen := make(map[string]bool)
	var colors []string
	for _, req := range m.ColorRequirements {
		if !seen[req.Color] {
			seen[req.Color] = true
			colors = append(colors, req.Color)
		}
	}
	return colors
}
