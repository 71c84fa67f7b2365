package gree

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvvy/gree-go/pkg/transport"
)

// Defaults for Config fields left at their zero value.
const (
	// DefaultBroadcastAddr is the limited broadcast address; set the
	// subnet broadcast address instead when routers filter it.
	DefaultBroadcastAddr = "255.255.255.255"

	// DefaultMaxCount caps how many devices a scan collects.
	DefaultMaxCount = 10

	// DefaultMinScanAge is the youngest a scan may be for a forced
	// refresh to be honored.
	DefaultMinScanAge = time.Minute

	// DefaultMaxScanAge is the oldest a scan may be before any
	// operation refreshes it first.
	DefaultMaxScanAge = 24 * time.Hour
)

// Config configures the orchestrator.
type Config struct {
	// BroadcastAddr is the scan target address (default
	// 255.255.255.255).
	BroadcastAddr string `yaml:"broadcast_addr"`

	// MaxCount is the scan device cap (default 10).
	MaxCount int `yaml:"max_count"`

	// MinScanAge throttles forced rescans (default 1m).
	MinScanAge time.Duration `yaml:"-"`

	// MaxScanAge bounds how stale a scan may get (default 24h).
	MaxScanAge time.Duration `yaml:"-"`

	// RecvTimeout is the transport receive timeout (default 3s).
	RecvTimeout time.Duration `yaml:"-"`

	// LocalAddr is the transport bind address (default ":7001").
	LocalAddr string `yaml:"local_addr"`

	// StatePath, if set, persists session keys to a JSON file.
	StatePath string `yaml:"state_path"`

	// Aliases maps device names to MACs.
	Aliases map[string]string `yaml:"aliases"`

	// Logger is the optional logger for debug output.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		BroadcastAddr: DefaultBroadcastAddr,
		MaxCount:      DefaultMaxCount,
		MinScanAge:    DefaultMinScanAge,
		MaxScanAge:    DefaultMaxScanAge,
		RecvTimeout:   transport.DefaultRecvTimeout,
		LocalAddr:     transport.DefaultLocalAddr,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	if c.BroadcastAddr == "" {
		c.BroadcastAddr = DefaultBroadcastAddr
	}
	if c.MaxCount == 0 {
		c.MaxCount = DefaultMaxCount
	}
	if c.MinScanAge == 0 {
		c.MinScanAge = DefaultMinScanAge
	}
	if c.MaxScanAge == 0 {
		c.MaxScanAge = DefaultMaxScanAge
	}
	if c.RecvTimeout == 0 {
		c.RecvTimeout = transport.DefaultRecvTimeout
	}
	if c.LocalAddr == "" {
		c.LocalAddr = transport.DefaultLocalAddr
	}
	return c
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if ip := net.ParseIP(c.BroadcastAddr); ip == nil || ip.To4() == nil {
		return fmt.Errorf("broadcast_addr %q is not an IPv4 address", c.BroadcastAddr)
	}
	if c.MaxCount <= 0 {
		return fmt.Errorf("max_count must be positive, got %d", c.MaxCount)
	}
	if c.MinScanAge < 0 || c.MaxScanAge <= 0 {
		return fmt.Errorf("scan ages must be positive")
	}
	if c.MinScanAge >= c.MaxScanAge {
		return fmt.Errorf("min_scan_age %s must be below max_scan_age %s",
			c.MinScanAge, c.MaxScanAge)
	}
	if c.RecvTimeout <= 0 {
		return fmt.Errorf("recv_timeout must be positive, got %s", c.RecvTimeout)
	}
	return nil
}

// rawConfig is the YAML-level representation; durations are strings in
// time.ParseDuration syntax.
type rawConfig struct {
	BroadcastAddr string            `yaml:"broadcast_addr"`
	MaxCount      int               `yaml:"max_count"`
	MinScanAge    string            `yaml:"min_scan_age"`
	MaxScanAge    string            `yaml:"max_scan_age"`
	RecvTimeout   string            `yaml:"recv_timeout"`
	LocalAddr     string            `yaml:"local_addr"`
	StatePath     string            `yaml:"state_path"`
	Aliases       map[string]string `yaml:"aliases"`
}

// LoadConfig reads a YAML config file, applies defaults and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes, applies defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg := Config{
		BroadcastAddr: raw.BroadcastAddr,
		MaxCount:      raw.MaxCount,
		LocalAddr:     raw.LocalAddr,
		StatePath:     raw.StatePath,
		Aliases:       raw.Aliases,
	}

	var err error
	if cfg.MinScanAge, err = parseDuration("min_scan_age", raw.MinScanAge); err != nil {
		return Config{}, err
	}
	if cfg.MaxScanAge, err = parseDuration("max_scan_age", raw.MaxScanAge); err != nil {
		return Config{}, err
	}
	if cfg.RecvTimeout, err = parseDuration("recv_timeout", raw.RecvTimeout); err != nil {
		return Config{}, err
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
