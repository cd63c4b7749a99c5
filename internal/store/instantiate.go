package store

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/record"
)

// Subscriber is the notification hub a record is subscribed to on creation.
type Subscriber interface {
	Subscribe(id models.Identifier, fn notify.Handler) *notify.Subscription
}

// InternalModels maps identifiers to their bookkeeping records.
type InternalModels interface {
	Lookup(id models.Identifier) *models.InternalModel
}

type internalModelMap struct {
	mu   sync.Mutex
	byID map[models.Identifier]*models.InternalModel
}

func newInternalModelMap() *internalModelMap {
	return &internalModelMap{byID: make(map[models.Identifier]*models.InternalModel)}
}

func (m *internalModelMap) Lookup(id models.Identifier) *models.InternalModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	im, ok := m.byID[id]
	if !ok {
		im = &models.InternalModel{Identifier: id, CurrentState: models.StateEmpty}
		m.byID[id] = im
	}
	return im
}

// InstantiateRecord builds the live record for id and subscribes it to hub.
// Entries in extra override the assembled construction arguments. The
// container slot is never visible to the factory.
func (s *Store) InstantiateRecord(id models.Identifier, extra record.Args, dataFor record.RecordDataFor, hub Subscriber) (record.Record, error) {
	const op = "instantiateRecord"
	if err := s.assertNotDestroying(op); err != nil {
		return nil, err
	}
	if hub == nil {
		return nil, apperr.InvalidArgument(op, "notification hub is required")
	}

	factory, _, err := s.resolveFactory(op, id.Type)
	if err != nil {
		return nil, err
	}

	im := s.internalModels.Lookup(id)
	args := record.Args{
		record.ArgStore:         s,
		record.ArgInternalModel: im,
		record.ArgCurrentState:  im.CurrentState,
		record.ArgIdentifier:    id,
		record.ArgContainer:     nil,
	}
	if dataFor != nil {
		args[record.ArgRecordData] = dataFor(id)
	}
	maps.Copy(args, extra)
	record.SetOwner(args, s.owner)
	delete(args, record.ArgContainer)

	rec, err := factory.Create(args)
	if err != nil {
		return nil, fmt.Errorf("store.%s: create %s: %w", op, id, err)
	}
	if rec == nil {
		return nil, &apperr.Error{Op: op, Model: id.Type, Msg: "factory returned no record for", Err: apperr.ErrInvalidArgument}
	}
	if !reflect.TypeOf(rec).Comparable() {
		rec.Destroy()
		return nil, &apperr.Error{Op: op, Model: id.Type, Msg: "factory returned a non-comparable record for", Err: apperr.ErrInvalidArgument}
	}

	sub := hub.Subscribe(id, func(change notify.Change) {
		rec.NotifyChange(change)
	})

	// A factory may hand back an instance it already returned; the record
	// keeps only its latest subscription.
	s.subsMu.Lock()
	prev, dup := s.subscriptions[rec]
	s.subscriptions[rec] = sub
	s.subsMu.Unlock()
	if dup {
		prev.Unsubscribe()
		s.logger.Warn("factory returned an already instantiated record",
			slog.String("model", id.Type), slog.String("id", id.ID))
	}
	return rec, nil
}

// TeardownRecord destroys rec and releases its notification subscription.
// It runs in any lifecycle state.
func (s *Store) TeardownRecord(rec record.Record) error {
	if rec == nil {
		return apperr.InvalidArgument("teardownRecord", "record is required")
	}
	rec.Destroy()
	if !reflect.TypeOf(rec).Comparable() {
		return nil
	}

	s.subsMu.Lock()
	sub, ok := s.subscriptions[rec]
	delete(s.subscriptions, rec)
	s.subsMu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
	return nil
}

// LiveSubscriptions returns how many records are subscribed through this store.
func (s *Store) LiveSubscriptions() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subscriptions)
}
