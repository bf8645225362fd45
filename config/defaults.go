package config

import (
	"time"

	natsup "github.com/go-i2p/go-nat-supervisor"
)

// ── Default values ───────────────────────────────────────────────────

const (
	// DefaultNATTimeout bounds the external IP query and each mapping.
	DefaultNATTimeout = 2 * time.Second

	// DefaultDiscoveryTimeout bounds the search for a gateway. It covers
	// all three UPnP searches and the NAT-PMP fallback.
	DefaultDiscoveryTimeout = natsup.DiscoveryTimeout

	// DefaultCommandPrefix marks console input as a command.
	DefaultCommandPrefix = "/"

	// DefaultTick is the minimum duration of one command loop iteration.
	DefaultTick = 10 * time.Millisecond

	// DefaultMappingDescription labels mappings in the router's table.
	DefaultMappingDescription = "natsupervisor port mapping"

	// DefaultCrashDir receives crash reports.
	DefaultCrashDir = "crashes"
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		NAT:                true,
		NATTimeout:         DefaultNATTimeout,
		DiscoveryTimeout:   DefaultDiscoveryTimeout,
		MappingDescription: DefaultMappingDescription,
		CommandPrefix:      DefaultCommandPrefix,
		Tick:               DefaultTick,
		CrashDir:           DefaultCrashDir,
		PauseOnStop:        true,
	}
}
