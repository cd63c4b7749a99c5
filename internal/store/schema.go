package store

import (
	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/record"
)

// SchemaDefinitionService answers what attributes and relationships a model
// type has. Model names passed in are already normalized.
type SchemaDefinitionService interface {
	AttributesDefinitionFor(modelName string) (models.AttributesDefinition, error)
	// RelationshipsDefinitionFor returns nil when the type declares no relationships.
	RelationshipsDefinitionFor(modelName string) (models.RelationshipsDefinition, error)
	DoesTypeExist(modelName string) bool
}

// GetSchemaDefinitionService returns the store's schema definition service.
// It fails with apperr.ErrCapabilityDisabled unless the pluggable schema
// capability is enabled.
func (s *Store) GetSchemaDefinitionService() (SchemaDefinitionService, error) {
	if !s.pluggable {
		return nil, apperr.CapabilityDisabled("getSchemaDefinitionService",
			"enable the pluggable schema capability to access the schema definition service")
	}
	return s.schemaDefinitionService(), nil
}

// RegisterSchemaDefinitionService binds svc as the store's schema provider.
// The handle cannot be replaced once bound or once first requested.
func (s *Store) RegisterSchemaDefinitionService(svc SchemaDefinitionService) error {
	const op = "registerSchemaDefinitionService"
	if !s.pluggable {
		return apperr.CapabilityDisabled(op, "enable the pluggable schema capability to register a schema definition service")
	}
	if svc == nil {
		return apperr.InvalidArgument(op, "schema definition service must not be nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaService != nil {
		return &apperr.Error{Op: op, Msg: "schema definition service is already bound", Err: apperr.ErrAlreadyExists}
	}
	s.schemaService = svc
	return nil
}

// schemaDefinitionService returns the bound provider, creating the default
// model-introspecting one on first use.
func (s *Store) schemaDefinitionService() SchemaDefinitionService {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaService == nil {
		s.schemaService = newModelSchemaService(s)
	}
	return s.schemaService
}

// AttributesDefinitionFor returns the attribute definitions of modelName.
func (s *Store) AttributesDefinitionFor(modelName string) (models.AttributesDefinition, error) {
	const op = "attributesDefinitionFor"
	if err := s.assertNotDestroyed(op); err != nil {
		return nil, err
	}
	name, err := s.normalizeName(op, modelName)
	if err != nil {
		return nil, err
	}
	return s.definitions.attributesFor(op, name)
}

// RelationshipsDefinitionFor returns the relationship definitions of
// modelName, nil when it declares none.
func (s *Store) RelationshipsDefinitionFor(modelName string) (models.RelationshipsDefinition, error) {
	const op = "relationshipsDefinitionFor"
	if err := s.assertNotDestroyed(op); err != nil {
		return nil, err
	}
	name, err := s.normalizeName(op, modelName)
	if err != nil {
		return nil, err
	}
	return s.definitions.relationshipsFor(op, name)
}

// RelationshipMetaFor returns the metadata of a single relationship key.
func (s *Store) RelationshipMetaFor(modelName, key string) (models.RelationshipMeta, bool, error) {
	const op = "relationshipMetaFor"
	if err := s.assertNotDestroyed(op); err != nil {
		return models.RelationshipMeta{}, false, err
	}
	name, err := s.normalizeName(op, modelName)
	if err != nil {
		return models.RelationshipMeta{}, false, err
	}
	return s.definitions.relationshipMetaFor(op, name, key)
}

// DoesTypeExist reports whether the active schema strategy knows modelName.
func (s *Store) DoesTypeExist(modelName string) (bool, error) {
	const op = "doesTypeExist"
	if err := s.assertNotDestroyed(op); err != nil {
		return false, err
	}
	name, err := s.normalizeName(op, modelName)
	if err != nil {
		return false, err
	}
	return s.definitions.doesTypeExist(op, name), nil
}

// definitionStrategy is the schema strategy bound once at construction.
type definitionStrategy interface {
	attributesFor(op, name string) (models.AttributesDefinition, error)
	relationshipsFor(op, name string) (models.RelationshipsDefinition, error)
	relationshipMetaFor(op, name, key string) (models.RelationshipMeta, bool, error)
	doesTypeExist(op, name string) bool
}

func newDefinitionStrategy(s *Store) definitionStrategy {
	if s.pluggable {
		return pluggableDefinitions{store: s}
	}
	return &legacyDefinitions{store: s, cache: newMetadataCache()}
}

// pluggableDefinitions delegates every call to the schema definition service.
type pluggableDefinitions struct {
	store *Store
}

func (d pluggableDefinitions) attributesFor(_, name string) (models.AttributesDefinition, error) {
	return d.store.schemaDefinitionService().AttributesDefinitionFor(name)
}

func (d pluggableDefinitions) relationshipsFor(_, name string) (models.RelationshipsDefinition, error) {
	return d.store.schemaDefinitionService().RelationshipsDefinitionFor(name)
}

func (d pluggableDefinitions) relationshipMetaFor(_, name, key string) (models.RelationshipMeta, bool, error) {
	rels, err := d.store.schemaDefinitionService().RelationshipsDefinitionFor(name)
	if err != nil {
		return models.RelationshipMeta{}, false, err
	}
	meta, ok := rels[key]
	return meta, ok, nil
}

func (d pluggableDefinitions) doesTypeExist(_, name string) bool {
	return d.store.schemaDefinitionService().DoesTypeExist(name)
}

// legacyDefinitions introspects first-class record types and memoizes the
// result in the store's metadata cache.
type legacyDefinitions struct {
	store *Store
	cache *metadataCache
}

func (d *legacyDefinitions) attributesFor(op, name string) (models.AttributesDefinition, error) {
	return d.cache.attributesFor(name, func() (models.AttributesDefinition, error) {
		mc, err := d.store.modelFor(op, name)
		if err != nil {
			return nil, err
		}
		return attributesFromClass(mc), nil
	})
}

func (d *legacyDefinitions) relationshipsFor(op, name string) (models.RelationshipsDefinition, error) {
	return d.cache.relationshipsFor(name, func() (models.RelationshipsDefinition, error) {
		mc, err := d.store.modelFor(op, name)
		if err != nil {
			return nil, err
		}
		return relationshipsFromClass(mc), nil
	})
}

// relationshipMetaFor reads the live class map, not the cache.
func (d *legacyDefinitions) relationshipMetaFor(op, name, key string) (models.RelationshipMeta, bool, error) {
	mc, err := d.store.modelFor(op, name)
	if err != nil {
		return models.RelationshipMeta{}, false, err
	}
	meta, ok := mc.RelationshipsByName()[key]
	return meta, ok, nil
}

func (d *legacyDefinitions) doesTypeExist(op, name string) bool {
	ok, _ := d.store.hasFactory(op, name)
	return ok
}

// modelSchemaService is the default pluggable provider. It introspects
// first-class record types and keeps its own cache.
type modelSchemaService struct {
	store *Store
	cache *metadataCache
}

func newModelSchemaService(s *Store) *modelSchemaService {
	return &modelSchemaService{store: s, cache: newMetadataCache()}
}

func (m *modelSchemaService) modelClass(op, name string) (record.ModelClass, error) {
	f, name, err := m.store.resolveFactory(op, name)
	if err != nil {
		return nil, err
	}
	mc, ok := f.(record.ModelClass)
	if !ok {
		return nil, apperr.NotFound(op, name)
	}
	return mc, nil
}

// AttributesDefinitionFor implements SchemaDefinitionService.
func (m *modelSchemaService) AttributesDefinitionFor(name string) (models.AttributesDefinition, error) {
	return m.cache.attributesFor(name, func() (models.AttributesDefinition, error) {
		mc, err := m.modelClass("attributesDefinitionFor", name)
		if err != nil {
			return nil, err
		}
		return attributesFromClass(mc), nil
	})
}

// RelationshipsDefinitionFor implements SchemaDefinitionService.
func (m *modelSchemaService) RelationshipsDefinitionFor(name string) (models.RelationshipsDefinition, error) {
	return m.cache.relationshipsFor(name, func() (models.RelationshipsDefinition, error) {
		mc, err := m.modelClass("relationshipsDefinitionFor", name)
		if err != nil {
			return nil, err
		}
		return relationshipsFromClass(mc), nil
	})
}

// DoesTypeExist implements SchemaDefinitionService.
func (m *modelSchemaService) DoesTypeExist(name string) bool {
	_, err := m.modelClass("doesTypeExist", name)
	return err == nil
}
