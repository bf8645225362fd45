package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"vawter.tech/stopper"

	natsup "github.com/go-i2p/go-nat-supervisor"
)

// Service is the supervised workload. It manages its own goroutines.
// Stop may be called any number of times.
type Service interface {
	Start() error
	Stop() error
	Close() error
	// Modules lists the components whose ports may be forwarded.
	Modules() []Module
}

// Module is a component of the service that may listen on a port.
type Module struct {
	Name    string
	Port    int
	Enabled bool
}

// ServiceFactory creates the service when the supervisor starts.
type ServiceFactory func() (Service, error)

// CommandDispatcher handles console commands the supervisor does not
// recognise itself. It returns false for unknown commands.
type CommandDispatcher interface {
	Handle(command string) bool
}

// NATTraversal discovers NAT devices and releases the mappings made
// through them. *nattraversal.Traversal implements it.
type NATTraversal interface {
	DiscoverDevice(ctx context.Context) (natsup.Device, error)
	ReleaseAll(ctx context.Context)
}

// LogStream is a process-wide log stream the console mirrors while the
// supervisor is alive. *logstream.Stream implements it.
type LogStream interface {
	Subscribe(w io.Writer) (unsubscribe func())
}

// Config controls supervisor behaviour.
type Config struct {
	// NATForwarding enables background port mapping and release on stop.
	NATForwarding bool
	// DiscoveryTimeout bounds the search for a NAT device.
	DiscoveryTimeout time.Duration
	// NATTimeout bounds the external IP query and each mapping request.
	NATTimeout time.Duration
	// MappingDescription labels mappings on the router.
	MappingDescription string
	// CommandPrefix marks console input as a command.
	CommandPrefix string
	// TickInterval is the minimum duration of one command loop iteration.
	TickInterval time.Duration
	// PauseOnStop waits for a key press after the stop command.
	PauseOnStop bool
}

// DefaultConfig returns the defaults used by New for zero fields.
func DefaultConfig() Config {
	return Config{
		NATForwarding:      true,
		DiscoveryTimeout:   natsup.DiscoveryTimeout,
		NATTimeout:         natsup.DefaultTimeout,
		MappingDescription: "natsupervisor port mapping",
		CommandPrefix:      "/",
		TickInterval:       10 * time.Millisecond,
		PauseOnStop:        true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = d.DiscoveryTimeout
	}
	if c.NATTimeout <= 0 {
		c.NATTimeout = d.NATTimeout
	}
	if c.MappingDescription == "" {
		c.MappingDescription = d.MappingDescription
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = d.CommandPrefix
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		s.log = l
	}
}

// WithLogStream mirrors stream to the console until Close.
func WithLogStream(stream LogStream) Option {
	return func(s *Supervisor) {
		s.stream = stream
	}
}

// WithConsole sets the operator console. The default uses stdin and stdout.
func WithConsole(c *Console) Option {
	return func(s *Supervisor) {
		s.console = c
	}
}

// WithDispatcher sets the handler for commands other than stop and clear.
func WithDispatcher(d CommandDispatcher) Option {
	return func(s *Supervisor) {
		s.dispatcher = d
	}
}

// WithNAT sets the NAT traversal used for port forwarding.
func WithNAT(nat NATTraversal) Option {
	return func(s *Supervisor) {
		s.nat = nat
	}
}

// WithArgParser receives the arguments passed to Run.
func WithArgParser(parse func(args []string) error) Option {
	return func(s *Supervisor) {
		s.parseArgs = parse
	}
}

// WithUpdateCheck runs check before the service starts. Failures are logged.
func WithUpdateCheck(check func(ctx context.Context) error) Option {
	return func(s *Supervisor) {
		s.checkUpdate = check
	}
}

// active guards the one-running-supervisor-per-process rule.
var active atomic.Pointer[Supervisor]

// Supervisor runs a Service with an interactive console and NAT forwarding.
type Supervisor struct {
	cfg        Config
	newService ServiceFactory

	log         *slog.Logger
	stream      LogStream
	unsubscribe func()
	console     *Console
	dispatcher  CommandDispatcher
	nat         NATTraversal
	parseArgs   func([]string) error
	checkUpdate func(context.Context) error
	localIP     func() (string, error)

	// ctx is cancelled by Stop and never reverts.
	ctx    context.Context
	cancel context.CancelFunc
	// runCtx is the caller's context while Run is active.
	runCtx context.Context
	tasks  *stopper.Context
	loop   *latch

	mu         sync.Mutex
	state      State
	service    Service
	runStarted bool
	lastStop   time.Time

	stopOnce     sync.Once
	svcStopOnce  sync.Once
	releaseOnce  sync.Once
	closeOnce    sync.Once
	svcCloseOnce sync.Once
	closeErr     error
}

// New creates an idle Supervisor. The console mirrors the log stream, if
// one is configured, from now until Close.
func New(newService ServiceFactory, cfg Config, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		cfg:         cfg.withDefaults(),
		newService:  newService,
		log:         slog.Default(),
		parseArgs:   func([]string) error { return nil },
		checkUpdate: func(context.Context) error { return nil },
		localIP:     natsup.LocalIP,
		ctx:         ctx,
		cancel:      cancel,
		runCtx:      context.Background(),
		loop:        newLatch(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.console == nil {
		s.console = NewConsole(os.Stdin, os.Stdout)
	}
	s.tasks = stopper.WithContext(ctx)

	if s.stream != nil {
		s.unsubscribe = s.stream.Subscribe(s.console)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastStop returns when an operator last issued the stop command.
func (s *Supervisor) LastStop() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStop
}

// Run forwards args to the argument parser, runs the update check and
// starts the service, then runs the command loop until it exits.
// Cancelling ctx requests a stop.
func (s *Supervisor) Run(ctx context.Context, args []string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer active.CompareAndSwap(s, nil)
	// The loop signals this itself; this covers runs that fail before it starts.
	defer s.loop.Signal()

	release := context.AfterFunc(ctx, s.Stop)
	defer release()

	if err := s.parseArgs(args); err != nil {
		s.Stop()
		return fmt.Errorf("parse arguments: %w", err)
	}

	if err := s.checkUpdate(ctx); err != nil {
		s.log.Warn("update check failed", "error", err)
	}

	err := s.start()
	s.Stop()
	return err
}

func (s *Supervisor) begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
	case StateRunning:
		return ErrAlreadyRunning
	default:
		return ErrStopped
	}
	if !active.CompareAndSwap(nil, s) {
		return ErrAlreadyRunning
	}

	s.state = StateRunning
	s.runStarted = true
	s.runCtx = ctx
	return nil
}

// start creates and starts the service, launches NAT forwarding in the
// background, then runs the command loop on the calling goroutine.
func (s *Supervisor) start() error {
	svc, err := s.newService()
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	s.mu.Lock()
	s.service = svc
	s.mu.Unlock()

	// Stop may have run before the service was registered.
	if s.cancelled() {
		s.stopService()
		return nil
	}

	if err := svc.Start(); err != nil {
		// A Stop that raced the start is an orderly shutdown.
		if s.cancelled() {
			return nil
		}
		return fmt.Errorf("start service: %w", err)
	}
	s.log.Info("service started")

	s.tasks.Go(func(ctx *stopper.Context) error {
		s.forwardPorts(ctx, svc)
		return nil
	})

	s.commandLoop()
	return nil
}

// Stop cancels background work, stops the service and releases NAT
// mappings. It does not wait for the command loop; Close does. Only the
// first call has an effect and concurrent callers return once it is done.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.setState(StateStopping)

		s.cancel()
		s.tasks.Stop(s.cfg.NATTimeout)
		s.stopService()
		if s.cfg.NATForwarding {
			s.releaseMappings()
		}

		s.setState(StateStopped)
		s.log.Info("supervisor stopped")
	})
}

// Close stops the supervisor if needed, waits for the command loop to
// exit, closes the service and waits for background work. It returns the
// service's Close error. Close must not be called from a command handler.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}

		s.Stop()

		s.mu.Lock()
		started := s.runStarted
		s.mu.Unlock()
		if started {
			<-s.loop.Done()
		}

		s.closeErr = s.closeService()

		if err := s.tasks.Wait(); err != nil {
			s.log.Warn("background task failed", "error", err)
		}
	})
	return s.closeErr
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Supervisor) cancelled() bool {
	return s.ctx.Err() != nil
}

func (s *Supervisor) currentService() Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service
}

func (s *Supervisor) stopService() {
	svc := s.currentService()
	if svc == nil {
		return
	}
	s.svcStopOnce.Do(func() {
		if err := svc.Stop(); err != nil {
			s.log.Error("service stop failed", "error", err)
		}
	})
}

func (s *Supervisor) closeService() error {
	svc := s.currentService()
	if svc == nil {
		return nil
	}

	var err error
	s.svcCloseOnce.Do(func() {
		err = svc.Close()
		s.mu.Lock()
		s.service = nil
		s.mu.Unlock()
	})
	return err
}

// releaseMappings removes every NAT mapping. Release failures are logged by
// the traversal.
func (s *Supervisor) releaseMappings() {
	if s.nat == nil {
		return
	}
	s.releaseOnce.Do(func() {
		s.nat.ReleaseAll(context.Background())
	})
}
