package main

import (
	"fmt"
	"time"

	natsup "github.com/go-i2p/go-nat-supervisor"
	"github.com/go-i2p/go-nat-supervisor/config"
	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

// registerCommands adds the console commands that report on the running
// process.
func registerCommands(
	cmds *supervisor.Commands,
	console *supervisor.Console,
	sup *supervisor.Supervisor,
	nat *natsup.Traversal,
	cfg *config.Config,
	started time.Time,
) {
	cmds.Register("status", func([]string) error {
		console.Println(fmt.Sprintf("state=%s uptime=%s mappings=%d",
			sup.State(), time.Since(started).Round(time.Second), len(nat.Mappings())))
		return nil
	})

	cmds.Register("mappings", func([]string) error {
		mappings := nat.Mappings()
		if len(mappings) == 0 {
			console.Println("no port mappings")
			return nil
		}
		for _, m := range mappings {
			console.Println(m.String())
		}
		return nil
	})

	cmds.Register("modules", func(args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("modules takes no arguments")
		}
		if len(cfg.Modules) == 0 {
			console.Println("no modules")
			return nil
		}
		for _, m := range cfg.Modules {
			console.Println(config.FormatModule(m))
		}
		return nil
	})
}
