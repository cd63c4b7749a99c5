package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/modelstore/internal/catalog"
	"github.com/starford/modelstore/internal/naming"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/recordservice"
	"github.com/starford/modelstore/internal/registry"
	"github.com/starford/modelstore/internal/storage"
	"github.com/starford/modelstore/internal/store"
)

// normalizeModelName keys model names in the registry, the store and the
// event stream filter alike.
var normalizeModelName = naming.Normalize

// runtime holds the components shared by the HTTP and MCP entry points.
type runtime struct {
	logger   *slog.Logger
	src      *storage.FS
	db       *catalog.DB
	registry *registry.Registry
	services *registry.Services
	store    *store.Store
	hub      *notify.Hub
	records  *recordservice.Service
	loader   *catalog.Loader
}

// newRuntime opens the schema directory and catalog, builds the store and
// runs the initial schema sync. onRecord may be nil.
func newRuntime(cfg *Config, logger *slog.Logger, onRecord recordservice.EventCallback) (*runtime, error) {
	if err := os.MkdirAll(cfg.Schema.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create schema dir: %w", err)
	}
	src, err := storage.NewFS(cfg.Schema.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	rt := &runtime{
		logger:   logger,
		src:      src,
		db:       db,
		registry: registry.New(registry.WithNormalizer(normalizeModelName)),
		services: registry.NewServices(),
		hub:      notify.NewHub(),
	}
	rt.services.Provide(registry.ServiceLogger, logger)
	rt.services.Provide(registry.ServiceHub, rt.hub)
	rt.services.Provide(registry.ServiceCatalog, db)

	storeOpts := []store.Option{
		store.WithNormalizer(normalizeModelName),
		store.WithOwner(rt.services),
		store.WithLogger(logger),
		store.WithStrictLifecycle(cfg.Store.StrictLifecycle),
		store.WithPluggableSchema(cfg.Schema.Pluggable),
	}
	if cfg.Schema.Pluggable {
		storeOpts = append(storeOpts, store.WithSchemaDefinitionService(db))
	}
	rt.store = store.New(rt.registry, storeOpts...)

	recordOpts := []recordservice.Option{recordservice.WithLogger(logger)}
	if onRecord != nil {
		recordOpts = append(recordOpts, recordservice.WithEventCallback(onRecord))
	}
	rt.records = recordservice.New(rt.store, rt.hub, recordOpts...)

	rt.loader = catalog.NewLoader(db, src, rt.registry, logger)
	if err := rt.loader.Sync(); err != nil {
		logger.Warn("initial schema sync failed", slog.String("error", err.Error()))
	}
	logger.Info("schema loaded",
		slog.Int("models", len(rt.registry.Names())),
		slog.Bool("pluggable", cfg.Schema.Pluggable))

	return rt, nil
}

// close unloads every record and destroys the store, then closes the
// catalog. Teardown runs while the store is destroying.
func (rt *runtime) close(ctx context.Context) error {
	rt.store.BeginDestroy()
	err := rt.records.Close(ctx)
	rt.store.Destroy()
	if live := rt.store.LiveSubscriptions(); live > 0 {
		rt.logger.Warn("subscriptions left after shutdown", slog.Int("count", live))
	}
	return errors.Join(err, rt.db.Close())
}
