// Package config loads the engine's YAML configuration file, described in
// SPEC_FULL.md §6, using gopkg.in/yaml.v3 — the pack's most common static
// config format (see dantte-lp/gobfd's koanf/yaml stack).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode mirrors translate.Mode in string form for the config file.
type Mode string

const (
	ModeNAT64     Mode = "nat64"
	ModeCLAT      Mode = "clat"
	ModeSixOverFour Mode = "6over4"
)

// StaticMapping is one pre-reserved v4<->v6 pair (spec.md §4.3).
type StaticMapping struct {
	V4 string `yaml:"v4"`
	V6 string `yaml:"v6"`
}

// DNS64 configures the optional AAAA-synthesis resolver (SPEC_FULL.md §6).
type DNS64 struct {
	Enabled  bool     `yaml:"enabled"`
	Upstream []string `yaml:"upstream"`
	// Listen is the local UDP address the synthesizing resolver answers
	// on. Defaults to 127.0.0.1:53 when dns64.enabled and unset.
	Listen string `yaml:"listen"`
}

// EngineConfig is the top-level YAML document shape.
type EngineConfig struct {
	Mode            Mode             `yaml:"mode"`
	Interface       string           `yaml:"interface"`
	MTU             int              `yaml:"mtu"`
	NAT64Prefix     string           `yaml:"nat64_prefix"`
	Pool            []string         `yaml:"pool"`
	StaticMappings  []StaticMapping  `yaml:"static_mappings"`
	MaxIdleSeconds  int              `yaml:"max_idle_seconds"`
	CustomerPrefix  string           `yaml:"customer_prefix"`
	DNS64           DNS64            `yaml:"dns64"`
	LogLevel        string           `yaml:"log_level"`
}

// MaxIdle returns MaxIdleSeconds as a time.Duration, or 0 (caller default)
// when unset.
func (c EngineConfig) MaxIdle() time.Duration {
	if c.MaxIdleSeconds <= 0 {
		return 0
	}
	return time.Duration(c.MaxIdleSeconds) * time.Second
}

// Load reads and parses path, applying the same field defaults the daemon
// would apply if the corresponding YAML key were simply absent.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.MTU <= 0 {
		cfg.MTU = 1500
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeNAT64
	}
	if cfg.DNS64.Enabled && cfg.DNS64.Listen == "" {
		cfg.DNS64.Listen = "127.0.0.1:53"
	}

	return &cfg, cfg.Validate()
}

// Validate checks the structural requirements Translator.New will otherwise
// reject one field at a time, so config errors surface with YAML-shaped
// context instead of a bare codec/translate error.
func (c EngineConfig) Validate() error {
	switch c.Mode {
	case ModeNAT64, ModeCLAT, ModeSixOverFour:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Interface == "" {
		return fmt.Errorf("config: interface name is required")
	}
	if ip := net.ParseIP(parsePrefixAddr(c.NAT64Prefix)); ip == nil || ip.To4() != nil {
		return fmt.Errorf("config: nat64_prefix %q is not a valid IPv6 CIDR", c.NAT64Prefix)
	}
	if c.Mode == ModeCLAT && c.CustomerPrefix == "" {
		return fmt.Errorf("config: clat mode requires customer_prefix")
	}
	if c.Mode != ModeCLAT && len(c.Pool) == 0 {
		return fmt.Errorf("config: %s mode requires a non-empty pool", c.Mode)
	}
	if c.DNS64.Enabled && len(c.DNS64.Upstream) == 0 {
		return fmt.Errorf("config: dns64.enabled requires at least one upstream")
	}
	return nil
}

func parsePrefixAddr(cidr string) string {
	ip, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return ""
	}
	return ip.String()
}
