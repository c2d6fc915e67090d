package driven

// ConfigStore is read access to layered configuration: a TOML or YAML file
// overlaid with environment variables. Keys are dotted ("remote.host").
// Typed getters return the zero value for missing or unconvertible keys;
// use Get to tell the two apart.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Load re-reads every source. A missing file is not an error.
	Load() error

	// Path is the file backing the store.
	Path() string
}
