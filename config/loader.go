package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paragnema1/scc/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "SCC"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier
// ones key by key.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies defaults, every layer in order, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "load "+path)
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads a YAML or JSON file into a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Lists are replaced, not appended.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// durationKeys lists the section.key pairs holding durations
var durationKeys = [][2]string{
	{"nats", "reconnect_interval"},
	{"nats", "timeout"},
}

// parseDurations converts duration strings ("10s", "1m") to nanoseconds so
// they unmarshal into time.Duration.
func parseDurations(data map[string]any) error {
	for _, key := range durationKeys {
		section, ok := data[key[0]].(map[string]any)
		if !ok {
			continue
		}
		s, ok := section[key[1]].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", key[0], key[1], err)
		}
		section[key[1]] = d.Nanoseconds()
	}
	return nil
}

// formatDurations is the inverse of parseDurations
func formatDurations(data map[string]any) {
	for _, key := range durationKeys {
		section, ok := data[key[0]].(map[string]any)
		if !ok {
			continue
		}
		if ns, ok := section[key[1]].(float64); ok {
			section[key[1]] = time.Duration(ns).String()
		}
	}
}

// applyEnvOverrides applies <prefix>_<SECTION>_<KEY> environment variables
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	var firstErr error
	str := func(name string, dst *string) {
		val, ok := l.getenv(name)
		if !ok {
			return
		}
		if err := validateEnvVar(name, val); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		*dst = val
	}
	num := func(name string, dst *int) {
		val, ok := l.getenv(name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(val)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", l.envPrefix+"_"+name, err)
		}
		if err == nil {
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		val, ok := l.getenv(name)
		if !ok {
			return
		}
		d, err := time.ParseDuration(val)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", l.envPrefix+"_"+name, err)
		}
		if err == nil {
			*dst = d
		}
	}
	list := func(name string, dst *[]string) {
		var val string
		str(name, &val)
		if val == "" {
			return
		}
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}

	str("SCC_ID", &cfg.SCCID)

	str("NATS_URL", &cfg.NATS.URL)
	str("NATS_USERNAME", &cfg.NATS.Username)
	str("NATS_PASSWORD", &cfg.NATS.Password)
	str("NATS_TOKEN", &cfg.NATS.Token)
	str("NATS_CLIENT_NAME", &cfg.NATS.ClientName)
	dur("NATS_RECONNECT_INTERVAL", &cfg.NATS.ReconnectInterval)
	dur("NATS_TIMEOUT", &cfg.NATS.Timeout)

	str("DATABASE_PROVIDER", &cfg.Database.Provider)
	str("DATABASE_USER", &cfg.Database.User)
	str("DATABASE_PASSWORD", &cfg.Database.Password)
	str("DATABASE_HOST", &cfg.Database.Host)
	num("DATABASE_PORT", &cfg.Database.Port)
	str("DATABASE_DB_NAME", &cfg.Database.DBName)
	str("DATABASE_PATH", &cfg.Database.Path)
	str("DATABASE_BUCKET", &cfg.Database.Bucket)

	str("YARD_TIME_ZONE", &cfg.Yard.TimeZone)
	list("YARD_ADMIN_ROLES", &cfg.Yard.AdminRoles)
	if val, ok := l.getenv("YARD_PROPAGATE_TORPEDO_STATUS"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s_YARD_PROPAGATE_TORPEDO_STATUS: %w", l.envPrefix, err)
		}
		if err == nil {
			cfg.Yard.PropagateTorpedoStatus = b
		}
	}

	num("ARCHIVE_QUEUE_SIZE", &cfg.Archive.QueueSize)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	if firstErr != nil {
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, firstErr),
			"Loader", "Load", "apply environment overrides")
	}
	return nil
}

func (l *Loader) getenv(name string) (string, bool) {
	val, ok := l.lookupEnv(l.envPrefix + "_" + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// SaveToFile writes the configuration as JSON or YAML, chosen by extension
func (c *Config) SaveToFile(path string) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		formatDurations(m)
		if data, err = yaml.Marshal(m); err != nil {
			return err
		}
	default:
		if data, err = json.MarshalIndent(c, "", "  "); err != nil {
			return err
		}
	}
	return safeWriteFile(path, data)
}
