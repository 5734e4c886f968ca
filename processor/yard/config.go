package yard

import (
	"time"

	"github.com/paragnema1/scc/config"
	"github.com/paragnema1/scc/errors"
)

// Config holds the processor settings taken from the service configuration
type Config struct {
	Subjects               config.SubjectsConfig
	AdminRoles             []string
	StatusSources          []string
	PropagateTorpedoStatus bool
	DetectionPoints        map[string][]string
	Location               *time.Location
	ArchiveQueueSize       int

	// RoleCacheTTL is how long user roles are reused before user_details is
	// read again. Zero reads it for every command.
	RoleCacheTTL time.Duration

	// CommandRate limits operator resets per second, with CommandBurst
	// allowed at once. Zero disables the limit.
	CommandRate  float64
	CommandBurst int
}

// Defaults applied by ConfigFrom
const (
	DefaultRoleCacheTTL = 30 * time.Second
	DefaultCommandRate  = 5
	DefaultCommandBurst = 10
)

// DefaultConfig returns the processor settings of config.Default
func DefaultConfig() Config {
	cfg, err := ConfigFrom(config.Default())
	if err != nil {
		return Config{Subjects: config.Default().Subjects, Location: time.Local, ArchiveQueueSize: 1024,
			RoleCacheTTL: DefaultRoleCacheTTL, CommandRate: DefaultCommandRate, CommandBurst: DefaultCommandBurst}
	}
	return cfg
}

// ConfigFrom extracts the processor settings from a loaded configuration
func ConfigFrom(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.WrapFatal(errors.ErrMissingConfig, "YardProcessor", "ConfigFrom", "check config")
	}
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Subjects:               cfg.Subjects,
		AdminRoles:             cfg.Yard.AdminRoles,
		StatusSources:          cfg.Yard.StatusSources,
		PropagateTorpedoStatus: cfg.Yard.PropagateTorpedoStatus,
		DetectionPoints:        cfg.Yard.DetectionPoints,
		Location:               loc,
		ArchiveQueueSize:       cfg.Archive.QueueSize,
		RoleCacheTTL:           DefaultRoleCacheTTL,
		CommandRate:            DefaultCommandRate,
		CommandBurst:           DefaultCommandBurst,
	}, nil
}
