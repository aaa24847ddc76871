package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/banshee-data/occupancy.report/internal/units"
)

// ServiceConfig holds daemon-level settings: listen addresses, the history
// database, the house timezone, and which optional sources and sinks are
// enabled. Engine inference parameters live in TuningConfig; this is
// everything around the engine.
type ServiceConfig struct {
	// HTTPAddr is the listen address for the monitor and API server.
	HTTPAddr string `koanf:"http_addr"`

	// UDPPort receives gateway sensor datagrams. UDPAddr narrows the bind
	// interface; empty means all interfaces.
	UDPPort int    `koanf:"udp_port"`
	UDPAddr string `koanf:"udp_addr"`

	// RcvBuf is the UDP socket receive buffer in bytes.
	RcvBuf int `koanf:"rcvbuf"`

	// DBPath is the SQLite history store. Empty disables persistence.
	DBPath string `koanf:"db_path"`

	// TopologyPath is the YAML connectivity descriptor the room graph is
	// built from.
	TopologyPath string `koanf:"topology_path"`

	// Timezone sets the day boundary for rollups and chart defaults.
	Timezone string `koanf:"timezone"`

	// TuningPath points at a tuning JSON file. Empty uses built-in defaults.
	TuningPath string `koanf:"tuning_path"`

	// WebhookURL receives a POST per estimate change. Empty disables.
	WebhookURL string `koanf:"webhook_url"`

	// DebugDir enables the frame recorder when set.
	DebugDir string `koanf:"debug_dir"`

	// SerialPort enables the serial presence-sensor mux when set.
	SerialPort string `koanf:"serial_port"`
	SerialBaud int    `koanf:"serial_baud"`

	// OccupancyGap is the max quiet stretch, as a duration string, that
	// still counts as continuous occupancy in the daily rollups.
	OccupancyGap string `koanf:"occupancy_gap"`
}

// DefaultServiceConfig returns the daemon defaults, the lowest layer of
// LoadServiceConfig.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		HTTPAddr:     ":8080",
		UDPPort:      2370,
		RcvBuf:       1 << 20,
		DBPath:       "occupancy_data.db",
		TopologyPath: "config/topology.yml",
		Timezone:     "UTC",
		SerialBaud:   115200,
		OccupancyGap: "5m",
	}
}

// LoadServiceConfig builds a ServiceConfig by layering defaults, an optional
// YAML file, and environment variables.
// Order of precedence (low -> high):
//  1. DefaultServiceConfig
//  2. YAML file (path argument, or OCCUPANCY_CONFIG if the argument is empty)
//  3. env (prefix OCCUPANCY_, e.g. OCCUPANCY_HTTP_ADDR -> http_addr)
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	cfg := *DefaultServiceConfig()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("OCCUPANCY_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("OCCUPANCY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "OCCUPANCY_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configs the daemon could not start with.
func (c *ServiceConfig) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if c.UDPPort < 1 || c.UDPPort > 65535 {
		return fmt.Errorf("udp_port %d out of range", c.UDPPort)
	}
	if c.TopologyPath == "" {
		return fmt.Errorf("topology_path must not be empty")
	}
	if !units.IsTimezoneValid(c.Timezone) {
		return fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("webhook_url must be an http(s) URL, got %q", c.WebhookURL)
		}
	}
	if c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", c.SerialBaud)
	}
	if _, err := time.ParseDuration(c.OccupancyGap); err != nil {
		return fmt.Errorf("occupancy_gap: %w", err)
	}
	return nil
}

// UDPListenAddr builds the bind address for the gateway listener.
func (c *ServiceConfig) UDPListenAddr() string {
	if c.UDPAddr == "" {
		return fmt.Sprintf(":%d", c.UDPPort)
	}
	return fmt.Sprintf("%s:%d", c.UDPAddr, c.UDPPort)
}

// Location resolves the configured timezone. Validate has already checked
// it parses.
func (c *ServiceConfig) Location() *time.Location {
	loc, err := units.Location(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GapDuration parses OccupancyGap. Validate has already checked it parses.
func (c *ServiceConfig) GapDuration() time.Duration {
	d, err := time.ParseDuration(c.OccupancyGap)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
