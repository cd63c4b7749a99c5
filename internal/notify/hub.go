// Package notify implements the per-identifier change-notification hub that
// live records subscribe to.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/starford/modelstore/internal/models"
)

// Change kinds delivered to subscribers.
const (
	ChangeAttributes    = "attributes"
	ChangeRelationships = "relationships"
	ChangeIdentity      = "identity"
	ChangeState         = "state"
	ChangeUnload        = "unload"
)

// Change describes what changed for an identifier.
type Change struct {
	Identifier models.Identifier `json:"identifier"`
	Kind       string            `json:"kind"`
	// Keys optionally narrows the change to specific attribute or relationship names.
	Keys []string `json:"keys,omitempty"`
}

// Handler receives changes for the identifier it was subscribed with.
type Handler func(Change)

// Hub fans out changes to subscribers keyed by identifier. Delivery is
// synchronous and happens outside the hub lock, so handlers may subscribe or
// unsubscribe re-entrantly.
type Hub struct {
	mu   sync.RWMutex
	subs map[models.Identifier]map[uuid.UUID]Handler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[models.Identifier]map[uuid.UUID]Handler)}
}

// Subscription is the handle returned by Subscribe. Its zero value is not usable.
type Subscription struct {
	hub   *Hub
	id    models.Identifier
	token uuid.UUID
	once  sync.Once
}

// Identifier returns the identifier this subscription listens on.
func (s *Subscription) Identifier() models.Identifier {
	return s.id
}

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id, s.token)
	})
}

// Subscribe registers fn for changes on id.
func (h *Hub) Subscribe(id models.Identifier, fn Handler) *Subscription {
	token := uuid.New()

	h.mu.Lock()
	byToken, ok := h.subs[id]
	if !ok {
		byToken = make(map[uuid.UUID]Handler)
		h.subs[id] = byToken
	}
	byToken[token] = fn
	h.mu.Unlock()

	return &Subscription{hub: h, id: id, token: token}
}

func (h *Hub) remove(id models.Identifier, token uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byToken, ok := h.subs[id]
	if !ok {
		return
	}
	delete(byToken, token)
	if len(byToken) == 0 {
		delete(h.subs, id)
	}
}

// Notify delivers a change of kind for id to every subscriber and reports how
// many handlers ran.
func (h *Hub) Notify(id models.Identifier, kind string, keys ...string) int {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[id]))
	for _, fn := range h.subs[id] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	change := Change{Identifier: id, Kind: kind, Keys: keys}
	for _, fn := range handlers {
		fn(change)
	}
	return len(handlers)
}

// Count returns the number of subscribers for id.
func (h *Hub) Count(id models.Identifier) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}
