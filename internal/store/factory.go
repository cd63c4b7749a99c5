package store

import (
	"errors"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/record"
)

// ResolveFactory returns the factory for modelName. Names that normalize to
// the same key return the identical factory.
func (s *Store) ResolveFactory(modelName string) (record.Factory, error) {
	const op = "resolveFactory"
	if err := s.assertNotDestroyed(op); err != nil {
		return nil, err
	}
	f, _, err := s.resolveFactory(op, modelName)
	return f, err
}

// HasFactory reports whether a factory exists for modelName. A missing
// factory is not remembered, so a later registration is picked up.
func (s *Store) HasFactory(modelName string) (bool, error) {
	const op = "hasFactory"
	if err := s.assertNotDestroyed(op); err != nil {
		return false, err
	}
	return s.hasFactory(op, modelName)
}

// ModelFor returns the introspection surface for modelName: the factory
// itself for first-class record types, otherwise a fresh ShimModelClass when
// the schema definition service knows the type.
func (s *Store) ModelFor(modelName string) (record.ModelClass, error) {
	const op = "modelFor"
	if err := s.assertNotDestroyed(op); err != nil {
		return nil, err
	}
	return s.modelFor(op, modelName)
}

func (s *Store) resolveFactory(op, raw string) (record.Factory, string, error) {
	name, err := s.normalizeName(op, raw)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	f, ok := s.factoryCache[name]
	s.mu.Unlock()
	if ok {
		return f, name, nil
	}

	f, ok = s.factories.LookupFactory(name)
	if !ok || f == nil {
		return nil, name, apperr.NotFound(op, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.factoryCache[name]; ok {
		return cached, name, nil
	}
	if n, ok := f.(record.Nameable); ok && n.ModelName() == "" {
		n.SetModelName(name)
	}
	s.factoryCache[name] = f
	return f, name, nil
}

func (s *Store) hasFactory(op, raw string) (bool, error) {
	_, _, err := s.resolveFactory(op, raw)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	}
	return false, err
}

func (s *Store) modelFor(op, raw string) (record.ModelClass, error) {
	f, name, err := s.resolveFactory(op, raw)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if mc, ok := f.(record.ModelClass); ok {
		return mc, nil
	}
	if s.pluggable && s.schemaDefinitionService().DoesTypeExist(name) {
		return &ShimModelClass{store: s, modelName: name}, nil
	}
	return nil, apperr.NotFound(op, name)
}
