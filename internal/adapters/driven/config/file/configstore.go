package file

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is a file-based implementation of driven.ConfigStore using TOML.
//
// Lookups resolve in order: SERCHA_RAG_* environment variables (including
// those set by a .env file), the TOML file, alias variables such as
// OPENAI_API_KEY, then the key's default. Only file values are written back.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	dotenv   []string
	data     map[string]any
	env      map[string]string
	alias    map[string]string
	lookup   func(string) (string, bool)
}

// Option configures a ConfigStore.
type Option func(*ConfigStore)

// WithDotEnv adds .env files read on Load. Missing files are skipped.
// Variables already present in the process environment take precedence.
func WithDotEnv(paths ...string) Option {
	return func(s *ConfigStore) {
		s.dotenv = append(s.dotenv, paths...)
	}
}

// WithLookupEnv replaces os.LookupEnv, for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(s *ConfigStore) {
		s.lookup = fn
	}
}

// DefaultDir returns ~/.sercha-rag.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sercha-rag"), nil
}

// NewConfigStore creates a new TOML-based config store.
// If configDir is empty, defaults to ~/.sercha-rag/config.toml.
// A .env file in configDir is always consulted.
func NewConfigStore(configDir string, opts ...Option) (*ConfigStore, error) {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		dotenv:   []string{filepath.Join(configDir, ".env")},
		data:     make(map[string]any),
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Get retrieves a configuration value by key.
// Environment overrides are returned as strings.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.env[key]; ok {
		return v, true
	}
	if v, ok := s.data[key]; ok {
		return v, true
	}
	if v, ok := s.alias[key]; ok {
		return v, true
	}
	if k, ok := LookupKey(key); ok {
		return k.Default, true
	}
	return nil, false
}

// Source reports where the effective value of key comes from:
// "env", "file", "default" or "" when the key is unknown.
func (s *ConfigStore) Source(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.env[key] != "":
		return "env"
	case s.data[key] != nil:
		return "file"
	case s.alias[key] != "":
		return "env"
	}
	if _, ok := LookupKey(key); ok {
		return "default"
	}
	return ""
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	// TOML integers are parsed as int64
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("Ignoring non-integer value for %s", key)
			return 0
		}
		return n
	default:
		return 0
	}
}

// GetFloat retrieves a floating point configuration value.
func (s *ConfigStore) GetFloat(key string) float64 {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn("Ignoring non-numeric value for %s", key)
			return 0
		}
		return f
	default:
		return 0
	}
}

// GetBool retrieves a boolean configuration value.
func (s *ConfigStore) GetBool(key string) bool {
	val, ok := s.Get(key)
	if !ok {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Set stores a configuration value and persists immediately.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.save()
}

// Save persists the current configuration to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes configuration to the TOML file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(s.data)
	if err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads configuration from the TOML file and the environment.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dotenv, err := readDotEnv(s.dotenv)
	if err != nil {
		return err
	}
	s.env, s.alias = s.readEnv(dotenv)

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file yet, start empty
			s.data = make(map[string]any)
			return nil
		}
		return err
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return err
	}

	if loaded == nil {
		loaded = make(map[string]any)
	}

	// Flatten nested tables into dot-notation keys
	s.data = flattenMap(loaded, "")
	return nil
}

// readEnv collects the prefixed overrides and alias values for known keys.
func (s *ConfigStore) readEnv(dotenv map[string]string) (env, alias map[string]string) {
	get := func(name string) (string, bool) {
		if v, ok := s.lookup(name); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok && v != ""
	}

	env = make(map[string]string)
	alias = make(map[string]string)
	for _, k := range keys {
		if v, ok := get(EnvName(k.Name)); ok {
			env[k.Name] = v
		}
		if k.Alias == "" {
			continue
		}
		if v, ok := get(k.Alias); ok {
			alias[k.Name] = v
		}
	}
	return env, alias
}

// readDotEnv merges .env files; earlier files win.
func readDotEnv(paths []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, p := range paths {
		vars, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		logger.Debug("Loaded environment from %s", p)
		for k, v := range vars {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
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
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
