package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/chromasync/internal/adapters/driven/config/values"
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

const (
	// DefaultFileName is the config file looked up in the config directory.
	DefaultFileName = "config.toml"

	// DefaultEnvPrefix marks environment variables that override the file.
	// CHROMASYNC_CHUNK_SIZE sets chunk_size and a double underscore nests,
	// so CHROMASYNC_REMOTE__HOST sets remote.host.
	DefaultEnvPrefix = "CHROMASYNC_"
)

// ConfigStore is a read-only driven.ConfigStore backed by a TOML or YAML
// file, overlaid with prefixed environment variables. Nested tables are
// addressed with dotted keys ("remote.host").
type ConfigStore struct {
	mu        sync.RWMutex
	filePath  string
	envPrefix string
	environ   func() []string
	data      map[string]any
}

// Option configures a ConfigStore.
type Option func(*ConfigStore)

// WithEnvPrefix changes the environment prefix. An empty prefix disables
// the overlay.
func WithEnvPrefix(prefix string) Option {
	return func(s *ConfigStore) { s.envPrefix = prefix }
}

// WithEnviron replaces os.Environ as the source of the overlay.
func WithEnviron(environ func() []string) Option {
	return func(s *ConfigStore) { s.environ = environ }
}

// NewConfigStore opens the config file at path, or ~/.chromasync/config.toml
// when path is empty. A missing file yields a store holding only the
// environment overlay.
func NewConfigStore(path string, opts ...Option) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: locating home directory: %w", domain.ErrConfiguration, err)
		}
		path = filepath.Join(home, ".chromasync", DefaultFileName)
	}

	s := &ConfigStore{
		filePath:  path,
		envPrefix: DefaultEnvPrefix,
		environ:   os.Environ,
		data:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves a configuration value by dotted key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string        { return values.String(s.Get(key)) }
func (s *ConfigStore) GetInt(key string) int              { return values.Int(s.Get(key)) }
func (s *ConfigStore) GetFloat(key string) float64        { return values.Float(s.Get(key)) }
func (s *ConfigStore) GetBool(key string) bool            { return values.Bool(s.Get(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string { return values.Strings(s.Get(key)) }

// Load re-reads the file and the environment. The format follows the file
// extension: .yaml and .yml are YAML, everything else is TOML.
func (s *ConfigStore) Load() error {
	loaded, err := s.readFile()
	if err != nil {
		return err
	}
	data := flattenMap(loaded, "")
	for k, v := range s.envOverrides() {
		data[k] = v
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) readFile() (map[string]any, error) {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfiguration, s.filePath, err)
	}

	var loaded map[string]any
	switch strings.ToLower(filepath.Ext(s.filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &loaded)
	default:
		err = toml.Unmarshal(raw, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, s.filePath, err)
	}
	return loaded, nil
}

// envOverrides maps prefixed variables to dotted keys.
func (s *ConfigStore) envOverrides() map[string]any {
	out := make(map[string]any)
	if s.envPrefix == "" || s.environ == nil {
		return out
	}
	for _, kv := range s.environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, s.envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, s.envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key != "" {
			out[key] = val
		}
	}
	return out
}

// flattenMap converts nested maps to dotted keys: {"a": {"b": 1}} becomes
// {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
			continue
		}
		result[fullKey] = value
	}
	return result
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
