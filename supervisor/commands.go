package supervisor

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// CommandFunc runs a console command with its whitespace-separated arguments.
type CommandFunc func(args []string) error

// Commands is a CommandDispatcher backed by a table of named commands.
// Names are matched case-insensitively.
type Commands struct {
	log *slog.Logger

	mu   sync.RWMutex
	cmds map[string]CommandFunc
}

// NewCommands returns an empty command table. Command failures are logged
// to log.
func NewCommands(log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{log: log, cmds: make(map[string]CommandFunc)}
}

// Register adds or replaces a command.
func (c *Commands) Register(name string, fn CommandFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds[strings.ToLower(name)] = fn
}

// Names returns the registered command names in sorted order.
func (c *Commands) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.cmds))
	for name := range c.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle implements CommandDispatcher. It reports false only for unknown
// commands; a command that runs and fails is still handled.
func (c *Commands) Handle(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	c.mu.RLock()
	fn, ok := c.cmds[name]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	if err := fn(fields[1:]); err != nil {
		c.log.Warn("command failed", "command", name, "error", err)
	}
	return true
}
