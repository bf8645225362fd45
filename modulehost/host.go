// Package modulehost is a supervisor.Service that runs one TCP listener per
// enabled module and hands every accepted connection to the module's
// handler.
package modulehost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"vawter.tech/stopper"

	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

// DefaultGracePeriod is how long open connections may keep running after
// Stop before they are closed.
const DefaultGracePeriod = 5 * time.Second

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("modulehost: stopped")

// Handler serves one connection. ctx is cancelled when the host's grace
// period ends; the connection is closed at the same time.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn)

// ServeConn calls f.
func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Option configures a Host.
type Option func(*Host)

// WithHandler sets the handler for the named module.
func WithHandler(module string, h Handler) Option {
	return func(host *Host) {
		host.handlers[module] = h
	}
}

// WithBindHost sets the address listeners bind to. The default binds all
// interfaces.
func WithBindHost(addr string) Option {
	return func(host *Host) {
		host.bind = addr
	}
}

// WithGracePeriod sets how long connections survive Stop.
func WithGracePeriod(d time.Duration) Option {
	return func(host *Host) {
		host.grace = d
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(host *Host) {
		host.log = l
	}
}

// Host runs the listeners of a set of modules.
type Host struct {
	modules  []supervisor.Module
	handlers map[string]Handler
	bind     string
	grace    time.Duration
	log      *slog.Logger

	tasks *stopper.Context

	mu        sync.Mutex
	listeners map[string]*moduleListener
	started   bool
	stopped   bool
}

var _ supervisor.Service = (*Host)(nil)

// New creates a Host for modules. Nothing listens until Start.
func New(modules []supervisor.Module, opts ...Option) *Host {
	h := &Host{
		modules:   append([]supervisor.Module(nil), modules...),
		handlers:  make(map[string]Handler),
		grace:     DefaultGracePeriod,
		log:       slog.Default(),
		tasks:     stopper.WithContext(context.Background()),
		listeners: make(map[string]*moduleListener),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Modules implements supervisor.Service.
func (h *Host) Modules() []supervisor.Module {
	return append([]supervisor.Module(nil), h.modules...)
}

// Start opens a listener for every enabled module with a port. If any
// listener fails, the ones already open are closed and the error returned.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrStopped
	}
	if h.started {
		return nil
	}

	opened := make(map[string]*moduleListener)
	for _, m := range h.modules {
		if !m.Enabled || m.Port == 0 {
			continue
		}
		l, err := listen(m, h.bind)
		if err != nil {
			for _, ol := range opened {
				_ = ol.Close()
			}
			return err
		}
		opened[m.Name] = l
	}

	for name, l := range opened {
		h.listeners[name] = l
		h.tasks.Go(func(ctx *stopper.Context) error {
			h.acceptLoop(ctx, l)
			return nil
		})
		h.log.Info("module listening", "module", name, "addr", l.Addr().String())
	}
	h.started = true
	return nil
}

// Stop closes every listener and gives open connections the grace period
// to finish. It may be called any number of times.
func (h *Host) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	listeners := h.listeners
	h.mu.Unlock()

	var errs []error
	for name, l := range listeners {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s listener: %w", name, err))
		}
	}
	h.tasks.Stop(h.grace)
	return errors.Join(errs...)
}

// Close stops the host and waits for every connection to finish.
func (h *Host) Close() error {
	err := h.Stop()
	if werr := h.tasks.Wait(); werr != nil {
		err = errors.Join(err, werr)
	}
	return err
}

// Addr returns the bound address of the named module, or nil when it is
// not listening.
func (h *Host) Addr(module string) net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.listeners[module]; ok {
		return l.Addr()
	}
	return nil
}

func (h *Host) handler(module string) Handler {
	if hd, ok := h.handlers[module]; ok {
		return hd
	}
	return Banner(module)
}

func (h *Host) acceptLoop(ctx *stopper.Context, l *moduleListener) {
	handler := h.handler(l.module)

	for {
		conn, err := l.Accept()
		if err != nil {
			if !l.isClosed() && !ctx.IsStopping() {
				h.log.Warn("accept failed", "module", l.module, "error", err)
			}
			return
		}

		if ctx.IsStopping() {
			_ = conn.Close()
			return
		}
		h.tasks.Go(func(ctx *stopper.Context) error {
			h.serve(ctx, l.module, handler, conn)
			return nil
		})
	}
}

func (h *Host) serve(ctx *stopper.Context, module string, handler Handler, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("connection handler panicked", "module", module, "panic", r)
		}
	}()

	h.log.Debug("connection accepted", "module", module, "remote", conn.RemoteAddr().String())
	handler.ServeConn(ctx, conn)
}

// moduleListener is a net.Listener that remembers it was closed so the
// accept loop can tell shutdown from failure.
type moduleListener struct {
	net.Listener
	module string

	mu     sync.Mutex
	closed bool
}

func listen(m supervisor.Module, bind string) (*moduleListener, error) {
	addr := net.JoinHostPort(bind, strconv.Itoa(m.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("module %s: failed to listen on %s: %w", m.Name, addr, err)
	}
	return &moduleListener{Listener: l, module: m.Name}, nil
}

func (l *moduleListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.Listener.Close()
}

func (l *moduleListener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
