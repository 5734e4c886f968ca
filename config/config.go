package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/topology"
)

// Database providers
const (
	ProviderPostgres  = "postgres"
	ProviderSQLite    = "sqlite"
	ProviderJetStream = "jetstream"
	ProviderMemory    = "memory"
)

// Config represents the complete service configuration
type Config struct {
	SCCID    string         `json:"scc_id"`
	NATS     NATSConfig     `json:"nats"`
	Database DatabaseConfig `json:"database"`
	Subjects SubjectsConfig `json:"subjects"`
	Yard     YardConfig     `json:"yard"`
	Archive  ArchiveConfig  `json:"archive"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// NATSConfig defines the broker connection
type NATSConfig struct {
	URL               string        `json:"url"`
	Username          string        `json:"username,omitempty"`
	Password          string        `json:"password,omitempty"`
	Token             string        `json:"token,omitempty"`
	ReconnectInterval time.Duration `json:"reconnect_interval,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
	ClientName        string        `json:"client_name,omitempty"`
}

// DatabaseConfig selects and addresses the persistence backend
type DatabaseConfig struct {
	Provider string `json:"provider"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	DBName   string `json:"db_name,omitempty"`
	Path     string `json:"path,omitempty"`   // sqlite file
	Bucket   string `json:"bucket,omitempty"` // jetstream KV bucket
}

// DSN returns the postgres connection string. Empty for other providers.
func (d DatabaseConfig) DSN() string {
	if d.Provider != ProviderPostgres {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SubjectsConfig names every subject the service subscribes or publishes to
type SubjectsConfig struct {
	SectionInfo     string `json:"section_info"`
	PointInfo       string `json:"point_info"`
	TrailThrough    string `json:"trail_through"`
	TrailClear      string `json:"tt_clear"`
	SectionReset    string `json:"section_reset"`
	DPReset         string `json:"dp_reset"`
	TorpedoInfo     string `json:"torpedo_info"`
	OCCSectionInfo  string `json:"occ_section_info"`
	OCCSectionReset string `json:"occ_section_reset"`
	SCCSectionReset string `json:"scc_section_reset"`
	SCCDPReset      string `json:"scc_dp_reset"`
}

func (s SubjectsConfig) all() map[string]string {
	return map[string]string{
		"section_info":      s.SectionInfo,
		"point_info":        s.PointInfo,
		"trail_through":     s.TrailThrough,
		"tt_clear":          s.TrailClear,
		"section_reset":     s.SectionReset,
		"dp_reset":          s.DPReset,
		"torpedo_info":      s.TorpedoInfo,
		"occ_section_info":  s.OCCSectionInfo,
		"occ_section_reset": s.OCCSectionReset,
		"scc_section_reset": s.SCCSectionReset,
		"scc_dp_reset":      s.SCCDPReset,
	}
}

// YardConfig is the static yard layout layered over the persisted topology
type YardConfig struct {
	topology.Zones

	StatusSources          []string `json:"status_sources"`
	TimeZone               string   `json:"time_zone"`
	PropagateTorpedoStatus bool     `json:"propagate_torpedo_status"`
	AdminRoles             []string `json:"admin_roles"`

	// DetectionPoints lists the detection points bounding each section.
	// They are sent with section reset commands.
	DetectionPoints map[string][]string `json:"detection_points,omitempty"`
}

// ArchiveConfig sizes the archival queue
type ArchiveConfig struct {
	QueueSize int `json:"queue_size"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		SCCID: "scc",
		NATS: NATSConfig{
			URL:               "nats://localhost:4222",
			ReconnectInterval: 10 * time.Second,
			Timeout:           5 * time.Second,
		},
		Database: DatabaseConfig{
			Provider: ProviderPostgres,
			Host:     "localhost",
			Port:     5432,
			DBName:   "scc",
			Path:     "data/scc.db",
			Bucket:   "scc",
		},
		Subjects: SubjectsConfig{
			SectionInfo:     "sem.section_info",
			PointInfo:       "pms.point_info",
			TrailThrough:    "scc.trail_through",
			TrailClear:      "cwsm.tt_clear",
			SectionReset:    "cwsm.section_reset",
			DPReset:         "cwsm.dp_reset",
			TorpedoInfo:     "scc.torpedo_info",
			OCCSectionInfo:  "occ.section_info",
			OCCSectionReset: "occ.section_reset",
			SCCSectionReset: "scc.section_reset",
			SCCDPReset:      "scc.dp_reset",
		},
		Yard: YardConfig{
			Zones:         topology.DefaultZones(),
			StatusSources: []string{"S1", "S2", "S3", "S4", "S20", "S21", "S22"},
			TimeZone:      "Local",
			AdminRoles:    []string{"Admin", "Command Center Admin"},
		},
		Archive: ArchiveConfig{QueueSize: 1024},
		Metrics: MetricsConfig{Addr: ":9090", Path: "/metrics"},
	}
}

// Validate checks the configuration and normalises subject names to
// lowercase.
func (c *Config) Validate() error {
	if c.SCCID == "" {
		return invalid("scc_id is required")
	}
	if c.NATS.URL == "" {
		return invalid("nats.url is required")
	}
	if c.NATS.ReconnectInterval < 0 {
		return invalid("nats.reconnect_interval cannot be negative")
	}
	if c.NATS.Timeout < 0 {
		return invalid("nats.timeout cannot be negative")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	subjects := c.Subjects.all()
	for name, subject := range subjects {
		if !isValidSubject(subject) {
			return invalid(fmt.Sprintf("subjects.%s %q is not a valid subject", name, subject))
		}
	}
	c.Subjects.SectionInfo = strings.ToLower(c.Subjects.SectionInfo)
	c.Subjects.PointInfo = strings.ToLower(c.Subjects.PointInfo)
	c.Subjects.TrailThrough = strings.ToLower(c.Subjects.TrailThrough)
	c.Subjects.TrailClear = strings.ToLower(c.Subjects.TrailClear)
	c.Subjects.SectionReset = strings.ToLower(c.Subjects.SectionReset)
	c.Subjects.DPReset = strings.ToLower(c.Subjects.DPReset)
	c.Subjects.TorpedoInfo = strings.ToLower(c.Subjects.TorpedoInfo)
	c.Subjects.OCCSectionInfo = strings.ToLower(c.Subjects.OCCSectionInfo)
	c.Subjects.OCCSectionReset = strings.ToLower(c.Subjects.OCCSectionReset)
	c.Subjects.SCCSectionReset = strings.ToLower(c.Subjects.SCCSectionReset)
	c.Subjects.SCCDPReset = strings.ToLower(c.Subjects.SCCDPReset)

	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Yard.Entry) == 0 {
		return invalid("yard.entry_sections must name at least one section")
	}
	if len(c.Yard.AdminRoles) == 0 {
		return invalid("yard.admin_roles must name at least one role")
	}
	if c.Archive.QueueSize <= 0 {
		return invalid("archive.queue_size must be positive")
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /")
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Provider {
	case ProviderPostgres:
		if d.Host == "" || d.DBName == "" {
			return invalid("database.host and database.db_name are required for postgres")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return invalid(fmt.Sprintf("database.port %d out of range", d.Port))
		}
	case ProviderSQLite:
		if d.Path == "" {
			return invalid("database.path is required for sqlite")
		}
	case ProviderJetStream:
		if d.Bucket == "" {
			return invalid("database.bucket is required for jetstream")
		}
	case ProviderMemory:
	default:
		return invalid(fmt.Sprintf("unknown database.provider %q", d.Provider))
	}
	return nil
}

// Location resolves Yard.TimeZone. Identifiers are formatted in this zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Yard.TimeZone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Yard.TimeZone)
	if err != nil {
		return nil, invalid(fmt.Sprintf("yard.time_zone %q: %v", c.Yard.TimeZone, err))
	}
	return loc, nil
}

// String renders the configuration with secrets masked
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "***"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "***"
	}
	if redacted.Database.Password != "" {
		redacted.Database.Password = "***"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{SCCID: %s}", c.SCCID)
	}
	return string(data)
}

func invalid(msg string) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "check configuration")
}

// isValidSubject accepts dot-separated tokens of letters, digits, dashes and
// underscores. Wildcards are not allowed.
func isValidSubject(s string) bool {
	if s == "" {
		return false
	}
	for _, token := range strings.Split(s, ".") {
		if token == "" {
			return false
		}
		for _, r := range token {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case r == '-', r == '_':
			default:
				return false
			}
		}
	}
	return true
}
