package config

// Precedence order (highest wins):
//   1. Flags  (flags.go)
//   2. Environment variables  (this file)
//   3. Defaults  (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays NATSUP_* environment variables onto cfg. Only
// non-empty variables override the existing value. Call it before parsing
// flags so that flags take precedence.
func LoadFromEnv(cfg *Config) error {
	if v, ok := envBool("NATSUP_NAT"); ok {
		cfg.NAT = v
	}
	if v := envInt("NATSUP_NAT_TIMEOUT"); v > 0 {
		cfg.NATTimeout = time.Duration(v) * time.Second
	}
	if v := envInt("NATSUP_DISCOVERY_TIMEOUT"); v > 0 {
		cfg.DiscoveryTimeout = time.Duration(v) * time.Second
	}
	if v := os.Getenv("NATSUP_MAPPING_DESCRIPTION"); v != "" {
		cfg.MappingDescription = v
	}
	if v := os.Getenv("NATSUP_MODULES"); v != "" {
		mods, err := ParseModules(v)
		if err != nil {
			return fmt.Errorf("NATSUP_MODULES: %w", err)
		}
		cfg.Modules = mods
	}

	if v := os.Getenv("NATSUP_PREFIX"); v != "" {
		cfg.CommandPrefix = v
	}
	if v := envInt("NATSUP_TICK"); v > 0 {
		cfg.Tick = time.Duration(v) * time.Millisecond
	}
	if v, ok := envBool("NATSUP_PAUSE_ON_STOP"); ok {
		cfg.PauseOnStop = v
	}

	if v := os.Getenv("NATSUP_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("NATSUP_CRASH_DIR"); v != "" {
		cfg.CrashDir = v
	}
	if v := envInt("NATSUP_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// envBool accepts 1/true/yes and 0/false/no. ok is false when the variable
// is unset or holds anything else.
func envBool(key string) (value, ok bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}
