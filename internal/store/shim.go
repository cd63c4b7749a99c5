package store

import (
	"log/slog"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/record"
)

// ShimModelClass stands in for model types that have no first-class record
// type. Every query goes back to the store's schema definitions.
type ShimModelClass struct {
	store     *Store
	modelName string
}

var _ record.ModelClass = (*ShimModelClass)(nil)

// ModelName implements record.ModelClass.
func (c *ShimModelClass) ModelName() string { return c.modelName }

// AttributesByName implements record.ModelClass.
func (c *ShimModelClass) AttributesByName() map[string]models.AttributeMeta {
	defs, err := c.store.definitions.attributesFor("modelFor", c.modelName)
	if err != nil {
		c.store.logger.Debug("shim: attributes unavailable",
			slog.String("model", c.modelName), slog.String("error", err.Error()))
		return nil
	}
	return defs
}

// RelationshipsByName implements record.ModelClass.
func (c *ShimModelClass) RelationshipsByName() map[string]models.RelationshipMeta {
	defs, err := c.store.definitions.relationshipsFor("modelFor", c.modelName)
	if err != nil {
		c.store.logger.Debug("shim: relationships unavailable",
			slog.String("model", c.modelName), slog.String("error", err.Error()))
		return nil
	}
	return defs
}

// Fields maps every attribute name to "attribute" and every relationship key
// to its kind.
func (c *ShimModelClass) Fields() map[string]string {
	out := make(map[string]string)
	for name := range c.AttributesByName() {
		out[name] = "attribute"
	}
	for key, meta := range c.RelationshipsByName() {
		out[key] = string(meta.Kind)
	}
	return out
}
