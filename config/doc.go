// Package config loads the SCC service configuration.
//
// Configuration is assembled in layers: built-in defaults, then each file
// added with AddLayer (YAML or JSON, chosen by extension), then environment
// overrides. Maps are merged key by key and lists are replaced, so a layer
// only needs to name what it changes.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/scc.yaml")
//	loader.AddLayer("configs/site.yaml")
//	cfg, err := loader.Load()
//
// Durations may be written as strings ("10s", "1m30s").
//
// # Environment Overrides
//
// Variables are named SCC_<SECTION>_<KEY>, for example SCC_NATS_URL,
// SCC_DATABASE_PROVIDER, SCC_DATABASE_PASSWORD or SCC_YARD_TIME_ZONE. Empty
// variables are ignored. SCC_YARD_ADMIN_ROLES takes a comma separated list.
//
// # Validation
//
// Load validates the result unless EnableValidation(false) was called.
// Validation failures wrap errors.ErrInvalidConfig and are classified fatal.
//
// # File Safety
//
// Files must be regular files under 1MB with a .json, .yaml or .yml
// extension. Relative paths may not escape the working directory.
package config
