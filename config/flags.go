package config

import (
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

// FlagSet binds flags to cfg. Values already in cfg become the defaults, so
// load the environment first.
func FlagSet(name string, cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	// ── NAT ──────────────────────────────────────────────────────
	fs.BoolVar(&cfg.NAT, "nat", cfg.NAT, "Forward module ports through the NAT gateway")
	fs.DurationVar(&cfg.NATTimeout, "nat-timeout", cfg.NATTimeout, "Timeout for each NAT request")
	fs.DurationVar(&cfg.DiscoveryTimeout, "discovery-timeout", cfg.DiscoveryTimeout, "Timeout for gateway discovery")
	fs.StringVar(&cfg.MappingDescription, "mapping-description", cfg.MappingDescription, "Description of port mappings on the gateway")

	// ── service ──────────────────────────────────────────────────
	fs.VarP(&moduleList{mods: &cfg.Modules}, "module", "m", "Module as name:port[:off] (repeatable)")

	// ── console ──────────────────────────────────────────────────
	fs.StringVar(&cfg.CommandPrefix, "prefix", cfg.CommandPrefix, "Console command prefix")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "Minimum command loop iteration time")
	fs.BoolVar(&cfg.PauseOnStop, "pause-on-stop", cfg.PauseOnStop, "Wait for a key press after the stop command")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write the log to this file")
	fs.StringVar(&cfg.CrashDir, "crash-dir", cfg.CrashDir, "Directory for crash reports")
	verbose := cfg.Verbose // CountVarP resets the counter
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity")
	cfg.Verbose = verbose

	return fs
}

// moduleList collects --module flags. The first flag replaces modules taken
// from the environment; later ones append.
type moduleList struct {
	mods *[]supervisor.Module
	set  bool
}

func (l *moduleList) String() string {
	if l.mods == nil {
		return ""
	}
	specs := make([]string, len(*l.mods))
	for i, m := range *l.mods {
		specs[i] = FormatModule(m)
	}
	return strings.Join(specs, ",")
}

func (l *moduleList) Set(v string) error {
	mods, err := ParseModules(v)
	if err != nil {
		return err
	}
	if !l.set {
		*l.mods = nil
		l.set = true
	}
	*l.mods = append(*l.mods, mods...)
	return nil
}

func (l *moduleList) Type() string {
	return "module"
}
