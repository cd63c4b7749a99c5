// Package store materializes live records from identifiers and resolves the
// schema metadata (attributes and relationships) of model types.
//
// A Store owns its caches: the factory cache keyed by normalized model name,
// the metadata cache used by the legacy schema strategy, and the single
// schema definition service handle. Nothing is shared across Store values.
package store

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/naming"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/record"
)

// Normalizer maps a raw model name to its canonical key.
type Normalizer func(raw string) string

// FactoryLookup is the environment registry asked for a factory on a cache miss.
type FactoryLookup interface {
	LookupFactory(modelName string) (record.Factory, bool)
}

// Option configures a Store.
type Option func(*Store)

// WithNormalizer replaces the default dasherizing normalizer. fn must be
// idempotent since canonical names are passed back into the store. The
// factory registry should be keyed by the same function.
func WithNormalizer(fn Normalizer) Option {
	return func(s *Store) {
		if fn != nil {
			s.normalize = fn
		}
	}
}

// WithOwner sets the ambient service owner propagated onto every record.
func WithOwner(owner record.Owner) Option {
	return func(s *Store) {
		s.owner = owner
	}
}

// WithLogger sets the logger used for lifecycle warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStrictLifecycle makes lifecycle violations fail instead of warn.
func WithStrictLifecycle(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// WithPluggableSchema enables the pluggable schema capability.
func WithPluggableSchema(enabled bool) Option {
	return func(s *Store) {
		s.pluggable = enabled
	}
}

// WithSchemaDefinitionService injects the schema provider used when the
// pluggable capability is enabled.
func WithSchemaDefinitionService(svc SchemaDefinitionService) Option {
	return func(s *Store) {
		s.schemaService = svc
	}
}

// WithInternalModels replaces the default in-memory bookkeeping records.
func WithInternalModels(im InternalModels) Option {
	return func(s *Store) {
		if im != nil {
			s.internalModels = im
		}
	}
}

// Store is the record materialization and schema resolution layer.
type Store struct {
	normalize      Normalizer
	factories      FactoryLookup
	owner          record.Owner
	logger         *slog.Logger
	strict         bool
	pluggable      bool
	internalModels InternalModels

	state atomic.Int32

	mu           sync.Mutex
	factoryCache map[string]record.Factory

	schemaMu      sync.Mutex
	schemaService SchemaDefinitionService

	definitions definitionStrategy

	subsMu        sync.Mutex
	subscriptions map[record.Record]*notify.Subscription
}

var _ record.StoreRef = (*Store)(nil)

// New creates a Store that resolves factories through factories.
func New(factories FactoryLookup, opts ...Option) *Store {
	s := &Store{
		normalize:      naming.Normalize,
		factories:      factories,
		logger:         slog.Default(),
		internalModels: newInternalModelMap(),
		factoryCache:   make(map[string]record.Factory),
		subscriptions:  make(map[record.Record]*notify.Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factories == nil {
		s.factories = emptyLookup{}
	}
	s.definitions = newDefinitionStrategy(s)
	return s
}

// Owner returns the ambient service owner.
func (s *Store) Owner() record.Owner {
	return s.owner
}

// LookupService resolves an ambient service the way records built by this
// store do.
func (s *Store) LookupService(name string) (any, bool) {
	if s.owner == nil {
		return nil, false
	}
	return s.owner.LookupService(name)
}

// InternalModelFor returns the bookkeeping record for id.
func (s *Store) InternalModelFor(id models.Identifier) *models.InternalModel {
	return s.internalModels.Lookup(id)
}

// PluggableSchema implements record.StoreRef.
func (s *Store) PluggableSchema() bool {
	return s.pluggable
}

// NormalizeModelName returns the canonical key for a raw model name.
func (s *Store) NormalizeModelName(raw string) (string, error) {
	return s.normalizeName("normalizeModelName", raw)
}

// normalizeName validates a raw model name and returns its canonical form.
func (s *Store) normalizeName(op, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperr.InvalidArgument(op, "model name must be a non-empty string")
	}
	return s.normalize(raw), nil
}

type emptyLookup struct{}

func (emptyLookup) LookupFactory(string) (record.Factory, bool) { return nil, false }
