// Package config defines the runtime configuration of natsupervisor and
// loads it from defaults, NATSUP_* environment variables and flags.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

// Config holds every tuneable of a natsupervisor process.
type Config struct {
	// ── NAT ──────────────────────────────────────────────────────────
	NAT                bool
	NATTimeout         time.Duration
	DiscoveryTimeout   time.Duration
	MappingDescription string

	// ── Service ──────────────────────────────────────────────────────
	Modules []supervisor.Module

	// ── Console ──────────────────────────────────────────────────────
	CommandPrefix string
	Tick          time.Duration
	PauseOnStop   bool

	// ── Output ───────────────────────────────────────────────────────
	LogFile  string // mirrored log, empty to disable
	CrashDir string
	Verbose  int
}

// ── Module specs ─────────────────────────────────────────────────────

// ParseModule accepts "name:port" or "name:port:off".
func ParseModule(spec string) (supervisor.Module, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return supervisor.Module{}, fmt.Errorf("invalid module %q: expected name:port[:off]", spec)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return supervisor.Module{}, fmt.Errorf("module name is required in %q", spec)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return supervisor.Module{}, fmt.Errorf("invalid module port %q", parts[1])
	}
	if port < 0 || port > 65535 {
		return supervisor.Module{}, fmt.Errorf("module port %d out of range 0-65535", port)
	}

	m := supervisor.Module{Name: name, Port: port, Enabled: true}
	if len(parts) == 3 {
		switch strings.ToLower(parts[2]) {
		case "off", "disabled":
			m.Enabled = false
		case "on", "enabled":
		default:
			return supervisor.Module{}, fmt.Errorf("invalid module state %q: expected on or off", parts[2])
		}
	}
	return m, nil
}

// ParseModules parses a comma-separated list of module specs.
func ParseModules(list string) ([]supervisor.Module, error) {
	var out []supervisor.Module
	for _, spec := range strings.Split(list, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		m, err := ParseModule(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// FormatModule is the inverse of ParseModule.
func FormatModule(m supervisor.Module) string {
	s := m.Name + ":" + strconv.Itoa(m.Port)
	if !m.Enabled {
		s += ":off"
	}
	return s
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.NATTimeout <= 0 {
		return &Error{Field: "nat-timeout", Value: c.NATTimeout, Message: "must be positive"}
	}
	if c.DiscoveryTimeout <= 0 {
		return &Error{Field: "discovery-timeout", Value: c.DiscoveryTimeout, Message: "must be positive"}
	}
	if c.Tick <= 0 {
		return &Error{Field: "tick", Value: c.Tick, Message: "must be positive"}
	}
	if c.CommandPrefix == "" {
		return &Error{Field: "prefix", Message: "must not be empty"}
	}
	if strings.ContainsAny(c.CommandPrefix, " \t\r\n") {
		return &Error{Field: "prefix", Value: c.CommandPrefix, Message: "must not contain whitespace"}
	}

	names := make(map[string]bool, len(c.Modules))
	ports := make(map[int]string, len(c.Modules))
	for _, m := range c.Modules {
		if names[m.Name] {
			return &Error{Field: "module", Value: m.Name, Message: "duplicate module name"}
		}
		names[m.Name] = true

		if !m.Enabled || m.Port == 0 {
			continue
		}
		if other, ok := ports[m.Port]; ok {
			return &Error{
				Field:   "module",
				Value:   FormatModule(m),
				Message: fmt.Sprintf("port already used by module %q", other),
			}
		}
		ports[m.Port] = m.Name
	}
	return nil
}

// ── Conversions ──────────────────────────────────────────────────────

// Supervisor returns the supervisor settings.
func (c *Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		NATForwarding:      c.NAT,
		DiscoveryTimeout:   c.DiscoveryTimeout,
		NATTimeout:         c.NATTimeout,
		MappingDescription: c.MappingDescription,
		CommandPrefix:      c.CommandPrefix,
		TickInterval:       c.Tick,
		PauseOnStop:        c.PauseOnStop,
	}
}

// EnabledModules returns the modules that should run.
func (c *Config) EnabledModules() []supervisor.Module {
	var out []supervisor.Module
	for _, m := range c.Modules {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// LogLevel maps the verbosity count to a slog level.
func (c *Config) LogLevel() slog.Level {
	if c.Verbose > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
