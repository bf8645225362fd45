// Command natsupervisor runs a set of TCP modules under a supervisor that
// forwards their ports through the local NAT gateway and accepts operator
// commands on the console.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	natsup "github.com/go-i2p/go-nat-supervisor"
	"github.com/go-i2p/go-nat-supervisor/config"
	"github.com/go-i2p/go-nat-supervisor/logstream"
	"github.com/go-i2p/go-nat-supervisor/modulehost"
	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=1.2.0"
var version = "0.1.0" //nolint:gochecknoglobals

// Exit codes.
const (
	exitOK      = 0
	exitStartup = 1
	exitUsage   = 2
	exitCrash   = 3
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	cfg := config.Default()
	if err := config.LoadFromEnv(cfg); err != nil {
		fmt.Fprintf(stderr, "natsupervisor: %v\n", err)
		return exitUsage
	}

	fs := config.FlagSet("natsupervisor", cfg)
	fs.SetOutput(stderr)
	var showVersion bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "natsupervisor: %v\n", err)
		return exitUsage
	}
	if showVersion {
		fmt.Fprintf(stdout, "natsupervisor %s\n", version)
		return exitOK
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "natsupervisor: %v\n", err)
		return exitUsage
	}

	// ── logging ──────────────────────────────────────────────────
	stream := logstream.New(cfg.LogLevel())
	logger := slog.New(stream)
	slog.SetDefault(logger)

	if cfg.LogFile != "" {
		lf, err := logstream.OpenFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(stderr, "natsupervisor: %v\n", err)
			return exitStartup
		}
		defer lf.Close()
		defer stream.Subscribe(lf)()
	}

	// ── components ───────────────────────────────────────────────
	nat := natsup.NewTraversal(
		natsup.WithLogger(logger),
		natsup.WithTimeout(cfg.NATTimeout),
	)
	console := supervisor.NewConsole(stdin, stdout)
	cmds := supervisor.NewCommands(logger)

	newService := func() (supervisor.Service, error) {
		return modulehost.New(cfg.Modules, modulehost.WithLogger(logger)), nil
	}

	sup := supervisor.New(newService, cfg.Supervisor(),
		supervisor.WithLogger(logger),
		supervisor.WithLogStream(stream),
		supervisor.WithConsole(console),
		supervisor.WithDispatcher(cmds),
		supervisor.WithNAT(nat),
		supervisor.WithArgParser(rejectArgs),
	)
	registerCommands(cmds, console, sup, nat, cfg, time.Now())

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		path, err := writeCrashReport(cfg.CrashDir, time.Now(), r, debug.Stack(), sup.LastStop())
		if err != nil {
			fmt.Fprintf(stderr, "natsupervisor: crashed (%v) and could not write a report: %v\n", r, err)
		} else {
			fmt.Fprintf(stderr, "natsupervisor: crashed, report written to %s\n", path)
		}
		code = exitCrash
	}()
	defer sup.Close()

	// ── run ──────────────────────────────────────────────────────
	runErr := sup.Run(ctx, fs.Args())
	if err := sup.Close(); err != nil {
		logger.Warn("service close failed", "error", err)
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "natsupervisor: %v\n", runErr)
		return exitStartup
	}
	return exitOK
}

// rejectArgs fails on positional arguments; everything is set by flags.
func rejectArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}
	return nil
}
