package record

import (
	"maps"
	"sync"
)

// MemoryData is an in-memory RecordData.
type MemoryData struct {
	mu    sync.RWMutex
	attrs map[string]any
}

// NewMemoryData returns a MemoryData seeded with a copy of attrs.
func NewMemoryData(attrs map[string]any) *MemoryData {
	d := &MemoryData{attrs: make(map[string]any, len(attrs))}
	maps.Copy(d.attrs, attrs)
	return d
}

// GetAttr implements RecordData.
func (d *MemoryData) GetAttr(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.attrs[key]
	return v, ok
}

// SetAttr implements RecordData.
func (d *MemoryData) SetAttr(key string, value any) {
	d.mu.Lock()
	d.attrs[key] = value
	d.mu.Unlock()
}

// Merge applies attrs and returns the keys whose value was set.
func (d *MemoryData) Merge(attrs map[string]any) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		d.attrs[k] = v
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a copy of the raw attributes.
func (d *MemoryData) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.attrs)
}
