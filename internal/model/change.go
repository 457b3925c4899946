package model

import (
	"slices"
	"time"
)

// ChangeEvent is one committed mutation in the change log.
//
// Seq is assigned at commit and increases monotonically across the whole
// log, so events of one collection are strictly ordered too. Before is nil
// for inserts and After is nil for deletes.
type ChangeEvent struct {
	Seq         int64      `json:"seq"`
	Collection  Collection `json:"collection"`
	Op          Operation  `json:"op"`
	EntityID    string     `json:"entity_id"`
	Before      Object     `json:"before,omitempty"`
	After       Object     `json:"after,omitempty"`
	Changed     []string   `json:"changed"`
	Origin      string     `json:"origin,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Flow        string     `json:"flow"`
	Depth       int        `json:"depth"`
	CommittedAt time.Time  `json:"committed_at"`
}

// HasChanged reports whether field is among the changed fields.
func (e ChangeEvent) HasChanged(field string) bool {
	return slices.Contains(e.Changed, field)
}

// Latest returns the most recent image of the entity: After, or Before
// for deletes.
func (e ChangeEvent) Latest() Object {
	if e.After != nil {
		return e.After
	}
	return e.Before
}

// NewChange builds an unsequenced change event from two images.
// Changed is computed from the images.
func NewChange(collection Collection, op Operation, entityID string, before, after Object) ChangeEvent {
	return ChangeEvent{
		Collection: collection,
		Op:         op,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Changed:    Diff(before, after),
	}
}
