package store

import (
	"sync"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/record"
)

// metadataCache memoizes per-type definitions. Presence of a key means the
// definition was computed, even when the stored relationships value is nil.
type metadataCache struct {
	mu            sync.Mutex
	attributes    map[string]models.AttributesDefinition
	relationships map[string]models.RelationshipsDefinition
}

func newMetadataCache() *metadataCache {
	return &metadataCache{
		attributes:    make(map[string]models.AttributesDefinition),
		relationships: make(map[string]models.RelationshipsDefinition),
	}
}

func (c *metadataCache) attributesFor(name string, load func() (models.AttributesDefinition, error)) (models.AttributesDefinition, error) {
	c.mu.Lock()
	defs, ok := c.attributes[name]
	c.mu.Unlock()
	if ok {
		return defs, nil
	}

	defs, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.attributes[name]; ok {
		return cached, nil
	}
	c.attributes[name] = defs
	return defs, nil
}

func (c *metadataCache) relationshipsFor(name string, load func() (models.RelationshipsDefinition, error)) (models.RelationshipsDefinition, error) {
	c.mu.Lock()
	defs, ok := c.relationships[name]
	c.mu.Unlock()
	if ok {
		return defs, nil
	}

	defs, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.relationships[name]; ok {
		return cached, nil
	}
	c.relationships[name] = defs
	return defs, nil
}

// attributesFromClass copies the class-level attribute map into the
// canonical shape.
func attributesFromClass(mc record.ModelClass) models.AttributesDefinition {
	src := mc.AttributesByName()
	out := make(models.AttributesDefinition, len(src))
	for name, meta := range src {
		if meta.Name == "" {
			meta.Name = name
		}
		out[name] = meta
	}
	return out
}

// relationshipsFromClass copies the class-level relationship map into the
// canonical shape; nil when the class declares none.
func relationshipsFromClass(mc record.ModelClass) models.RelationshipsDefinition {
	src := mc.RelationshipsByName()
	if len(src) == 0 {
		return nil
	}
	out := make(models.RelationshipsDefinition, len(src))
	for key, meta := range src {
		if meta.Key == "" {
			meta.Key = key
		}
		if meta.ParentModelName == "" {
			meta.ParentModelName = mc.ModelName()
		}
		out[key] = meta
	}
	return out
}
