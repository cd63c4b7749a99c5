package record

import "github.com/starford/modelstore/internal/models"

// Well-known construction argument keys.
const (
	ArgStore         = "store"
	ArgInternalModel = "_internalModel"
	ArgCurrentState  = "currentState"
	ArgIdentifier    = "identifier"
	ArgRecordData    = "recordData"
	ArgContainer     = "container"
	ArgOwner         = "owner"
)

// Args are the construction arguments handed to Factory.Create. Keys not
// listed above are passed through to the record as properties.
type Args map[string]any

// SetOwner propagates owner onto args so the record resolves services the
// same way its store does.
func SetOwner(args Args, owner Owner) {
	args[ArgOwner] = owner
}

// OwnerOf returns the owner propagated onto args, if any.
func OwnerOf(args Args) Owner {
	o, _ := args[ArgOwner].(Owner)
	return o
}

// Store returns the store back-reference.
func (a Args) Store() StoreRef {
	s, _ := a[ArgStore].(StoreRef)
	return s
}

// InternalModel returns the bookkeeping record back-reference.
func (a Args) InternalModel() *models.InternalModel {
	im, _ := a[ArgInternalModel].(*models.InternalModel)
	return im
}

// CurrentState returns the lifecycle state captured at construction.
func (a Args) CurrentState() string {
	s, _ := a[ArgCurrentState].(string)
	return s
}

// Identifier returns the identifier being materialized.
func (a Args) Identifier() (models.Identifier, bool) {
	id, ok := a[ArgIdentifier].(models.Identifier)
	return id, ok
}

// RecordData returns the raw data accessor.
func (a Args) RecordData() RecordData {
	d, _ := a[ArgRecordData].(RecordData)
	return d
}

// Properties returns the arguments that are not well-known keys.
func (a Args) Properties() map[string]any {
	out := make(map[string]any)
	for k, v := range a {
		switch k {
		case ArgStore, ArgInternalModel, ArgCurrentState, ArgIdentifier, ArgRecordData, ArgContainer, ArgOwner:
			continue
		}
		out[k] = v
	}
	return out
}
