package memory

import (
	"sync"

	"github.com/custodia-labs/chromasync/internal/adapters/driven/config/values"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory driven.ConfigStore. Keys are dotted paths
// ("remote.host") as in the file-backed store.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates a store seeded with a copy of vals.
func NewConfigStore(vals map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any, len(vals))}
	for k, v := range vals {
		s.values[k] = v
	}
	return s
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string        { return values.String(s.Get(key)) }
func (s *ConfigStore) GetInt(key string) int              { return values.Int(s.Get(key)) }
func (s *ConfigStore) GetFloat(key string) float64        { return values.Float(s.Get(key)) }
func (s *ConfigStore) GetBool(key string) bool            { return values.Bool(s.Get(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string { return values.Strings(s.Get(key)) }

// Set stores a configuration value.
func (s *ConfigStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Load is a no-op.
func (s *ConfigStore) Load() error {
	return nil
}

// Path returns ":memory:".
func (s *ConfigStore) Path() string {
	return ":memory:"
}
