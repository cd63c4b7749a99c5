package registry

import (
	"slices"
	"sync"

	"github.com/starford/modelstore/internal/record"
)

// Well-known service names.
const (
	ServiceLogger  = "logger"
	ServiceHub     = "hub"
	ServiceCatalog = "catalog"
)

// Services is the ambient service container used as the store's owner.
type Services struct {
	mu       sync.RWMutex
	services map[string]any
}

var _ record.Owner = (*Services)(nil)

// NewServices creates an empty container.
func NewServices() *Services {
	return &Services{services: make(map[string]any)}
}

// Provide binds svc under name.
func (s *Services) Provide(name string, svc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = svc
}

// LookupService implements record.Owner.
func (s *Services) LookupService(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[name]
	return svc, ok
}

// Names returns the bound service names, sorted.
func (s *Services) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.services))
	for n := range s.services {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
