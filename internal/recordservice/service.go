// Package recordservice keeps one live record per identifier on top of the
// store, together with the raw attribute data the records read through.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/record"
	"github.com/starford/modelstore/internal/store"
)

// EventCallback is called after a record changes. kind is "updated" or
// "unloaded"; keys lists the changed property names when known.
type EventCallback func(kind string, id models.Identifier, keys []string)

// RecordDetail is the external representation of a live record.
type RecordDetail struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Option configures a Service.
type Option func(*Service)

// WithEventCallback registers cb for record change events.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Service) {
		s.onChange = cb
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service coordinates the store, the notification hub and raw record data.
type Service struct {
	store    *store.Store
	hub      *notify.Hub
	logger   *slog.Logger
	onChange EventCallback

	mu        sync.Mutex
	records   map[models.Identifier]record.Record
	data      map[models.Identifier]*record.MemoryData
	unobserve map[models.Identifier]func()
}

// New creates a record service over st, delivering changes through hub.
func New(st *store.Store, hub *notify.Hub, opts ...Option) *Service {
	s := &Service{
		store:     st,
		hub:       hub,
		logger:    slog.Default(),
		records:   make(map[models.Identifier]record.Record),
		data:      make(map[models.Identifier]*record.MemoryData),
		unobserve: make(map[models.Identifier]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// canonical validates id and normalizes its type the way the store does.
func (s *Service) canonical(op string, id models.Identifier) (models.Identifier, error) {
	if strings.TrimSpace(id.ID) == "" {
		return id, apperr.InvalidArgument(op, "record id must be a non-empty string")
	}
	ok, err := s.store.HasFactory(id.Type)
	if err != nil {
		return id, err
	}
	name, err := s.store.NormalizeModelName(id.Type)
	if err != nil {
		return id, err
	}
	if !ok {
		return id, apperr.NotFound(op, name)
	}
	return models.Identifier{Type: name, ID: id.ID}, nil
}

// Push merges attrs into the raw data of id and notifies its live record.
func (s *Service) Push(ctx context.Context, id models.Identifier, attrs map[string]any) (*RecordDetail, error) {
	id, err := s.canonical("push", id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, ok := s.data[id]
	if !ok {
		data = record.NewMemoryData(nil)
		s.data[id] = data
	}
	changed := data.Merge(attrs)
	im := s.store.InternalModelFor(id)
	stateChanged := im.CurrentState == models.StateEmpty
	if stateChanged {
		im.CurrentState = models.StateLoaded
	}
	_, live := s.records[id]
	s.mu.Unlock()

	if live {
		if len(changed) > 0 {
			s.hub.Notify(id, notify.ChangeAttributes, changed...)
		}
		if stateChanged {
			s.hub.Notify(id, notify.ChangeState)
		}
	}
	return s.Describe(ctx, id)
}

// Create pushes attrs under a generated id and materializes the record.
func (s *Service) Create(ctx context.Context, modelName string, attrs map[string]any) (*RecordDetail, error) {
	return s.Push(ctx, models.Identifier{Type: modelName, ID: uuid.NewString()}, attrs)
}

// Find returns the live record for id, materializing it on first access.
// Only identifiers with pushed data can be found.
func (s *Service) Find(_ context.Context, id models.Identifier) (record.Record, error) {
	id, err := s.canonical("find", id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		return rec, nil
	}
	if _, ok := s.data[id]; !ok {
		return nil, &apperr.Error{Op: "find", Model: id.String(), Msg: "no record data was pushed for", Err: apperr.ErrNotFound}
	}

	rec, err := s.store.InstantiateRecord(id, nil, s.dataForLocked, s.hub)
	if err != nil {
		return nil, err
	}
	s.records[id] = rec
	if m, ok := rec.(*record.Model); ok {
		s.unobserve[id] = m.Observe(func(_ *record.Model, key string) {
			s.emit("updated", id, []string{key})
		})
	}
	s.logger.Debug("record materialized", slog.String("identifier", id.String()))
	return rec, nil
}

// dataForLocked is handed to the store while s.mu is held.
func (s *Service) dataForLocked(id models.Identifier) record.RecordData {
	return s.data[id]
}

// Update writes attrs through the live record so observers see each change.
func (s *Service) Update(ctx context.Context, id models.Identifier, attrs map[string]any) (*RecordDetail, error) {
	rec, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	m, ok := rec.(*record.Model)
	if !ok {
		return s.Push(ctx, rec.Identifier(), attrs)
	}
	for _, key := range slices.Sorted(maps.Keys(attrs)) {
		if err := m.Set(key, attrs[key]); err != nil {
			return nil, &apperr.Error{Op: "update", Msg: err.Error(), Err: apperr.ErrInvalidArgument}
		}
	}
	return s.Describe(ctx, m.Identifier())
}

// Describe materializes id and reports its attributes.
func (s *Service) Describe(ctx context.Context, id models.Identifier) (*RecordDetail, error) {
	rec, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	rid := rec.Identifier()
	detail := &RecordDetail{Type: rid.Type, ID: rid.ID}

	if m, ok := rec.(*record.Model); ok {
		attrs, err := m.Attributes()
		if err != nil {
			return nil, fmt.Errorf("recordservice: describe %s: %w", rid, err)
		}
		detail.Attributes = attrs
		detail.State = m.InternalModel().CurrentState
		return detail, nil
	}

	s.mu.Lock()
	detail.Attributes = s.data[rid].Snapshot()
	s.mu.Unlock()
	detail.State = s.store.InternalModelFor(rid).CurrentState
	return detail, nil
}

// Unload tears down the live record for id and forgets its data.
func (s *Service) Unload(_ context.Context, id models.Identifier) error {
	id, err := s.canonical("unload", id)
	if err != nil {
		return err
	}
	known, err := s.unload(id)
	if err != nil {
		return err
	}
	if !known {
		return &apperr.Error{Op: "unload", Model: id.String(), Msg: "no record is loaded for", Err: apperr.ErrNotFound}
	}
	return nil
}

// Close unloads every record.
func (s *Service) Close(_ context.Context) error {
	var errs []error
	for _, id := range s.Loaded() {
		if _, err := s.unload(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unload forgets a canonical identifier and tears down its live record.
func (s *Service) unload(id models.Identifier) (bool, error) {
	s.mu.Lock()
	rec, live := s.records[id]
	_, known := s.data[id]
	stop := s.unobserve[id]
	delete(s.records, id)
	delete(s.data, id)
	delete(s.unobserve, id)
	s.mu.Unlock()

	if !live && !known {
		return false, nil
	}
	if stop != nil {
		stop()
	}
	if live {
		if err := s.store.TeardownRecord(rec); err != nil {
			return true, err
		}
	}
	s.store.InternalModelFor(id).CurrentState = models.StateEmpty
	s.emit("unloaded", id, nil)
	return true, nil
}

// Loaded returns the identifiers with pushed data, sorted.
func (s *Service) Loaded() []models.Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.data))
	slices.SortFunc(ids, func(a, b models.Identifier) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

// LiveCount returns the number of materialized records.
func (s *Service) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Service) emit(kind string, id models.Identifier, keys []string) {
	if s.onChange != nil {
		s.onChange(kind, id, keys)
	}
}
