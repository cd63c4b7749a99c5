// Package models defines the domain types shared by the store and its collaborators.
package models

import "fmt"

// Identifier names a conceptual record. It is a comparable value so it can be
// used as a map key; an empty ID stands for a record without a server id.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// String implements fmt.Stringer.
func (i Identifier) String() string {
	if i.ID == "" {
		return fmt.Sprintf("%s:<new>", i.Type)
	}
	return fmt.Sprintf("%s:%s", i.Type, i.ID)
}

// Record lifecycle states tracked on the internal bookkeeping record.
const (
	StateEmpty   = "root.empty"
	StateLoaded  = "root.loaded.saved"
	StateDirty   = "root.loaded.updated"
	StateDeleted = "root.deleted.saved"
)

// InternalModel is the per-identifier bookkeeping record a live object keeps a
// back-reference to.
type InternalModel struct {
	Identifier   Identifier `json:"identifier"`
	CurrentState string     `json:"current_state"`
	IsError      bool       `json:"is_error"`
}
