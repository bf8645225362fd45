package nattraversal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DiscoverFunc locates a PortMapper on the local network.
type DiscoverFunc func(ctx context.Context) (PortMapper, error)

// Traversal discovers NAT devices and owns every mapping created through
// them. Mappings are renewed until ReleaseAll, after which the traversal
// refuses new mappings.
type Traversal struct {
	discover   DiscoverFunc
	timeout    time.Duration
	renewEvery time.Duration
	log        *slog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	released bool
	renewal  *renewal
}

type entry struct {
	mapper  PortMapper
	mapping Mapping
}

// Option configures a Traversal.
type Option func(*Traversal)

// WithDiscoverFunc replaces UPnP/NAT-PMP discovery.
func WithDiscoverFunc(fn DiscoverFunc) Option {
	return func(t *Traversal) {
		t.discover = fn
	}
}

// WithTimeout bounds each renew and release request.
func WithTimeout(d time.Duration) Option {
	return func(t *Traversal) {
		t.timeout = d
	}
}

// WithRenewalInterval sets how often active mappings are refreshed.
func WithRenewalInterval(d time.Duration) Option {
	return func(t *Traversal) {
		t.renewEvery = d
	}
}

// WithLogger sets the logger for renew and release failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Traversal) {
		t.log = l
	}
}

// NewTraversal creates a Traversal using DiscoverPortMapper by default.
func NewTraversal(opts ...Option) *Traversal {
	t := &Traversal{
		discover:   DiscoverPortMapper,
		timeout:    DefaultTimeout,
		renewEvery: RenewalInterval,
		log:        slog.Default(),
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.renewal = newRenewal(t.renewEvery, t.renewAll)
	return t
}

// DiscoverDevice finds a NAT device. Any discovery failure other than
// cancellation wraps ErrDeviceNotFound.
func (t *Traversal) DiscoverDevice(ctx context.Context) (Device, error) {
	if t.isReleased() {
		return nil, ErrReleased
	}

	mapper, err := t.discover(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	return &device{t: t, mapper: mapper}, nil
}

// Mappings returns the active mappings ordered by protocol and external port.
func (t *Traversal) Mappings() []Mapping {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Mapping, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.mapping)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Protocol != out[j].Protocol {
			return out[i].Protocol < out[j].Protocol
		}
		return out[i].ExternalPort < out[j].ExternalPort
	})
	return out
}

// ReleaseAll stops renewal and removes every mapping from its device.
// Failures are logged. Only the first call does any work.
func (t *Traversal) ReleaseAll(ctx context.Context) {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	t.renewal.Stop()

	for _, e := range entries {
		t.unmap(ctx, e)
	}
}

func (t *Traversal) isReleased() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *Traversal) mapPort(ctx context.Context, mapper PortMapper, m Mapping) (Mapping, error) {
	m, err := m.normalize()
	if err != nil {
		return m, &MappingError{Op: "map", Mapping: m, Err: err}
	}
	if t.isReleased() {
		return m, ErrReleased
	}

	ext, err := mapper.MapPort(ctx, m)
	if err != nil {
		return m, &MappingError{Op: "map", Mapping: m, Err: err}
	}
	m.ExternalPort = ext

	e := &entry{mapper: mapper, mapping: m}

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		// ReleaseAll ran while the request was in flight
		t.unmap(context.WithoutCancel(ctx), e)
		return m, ErrReleased
	}
	t.entries[m.key()] = e
	t.mu.Unlock()

	t.renewal.Start()
	return m, nil
}

func (t *Traversal) unmap(ctx context.Context, e *entry) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := e.mapper.UnmapPort(ctx, e.mapping); err != nil {
		t.log.Warn("failed to release port mapping",
			"protocol", e.mapping.Protocol,
			"port", e.mapping.ExternalPort,
			"error", err)
		return
	}
	t.log.Debug("port mapping released",
		"protocol", e.mapping.Protocol,
		"port", e.mapping.ExternalPort)
}

// renewAll refreshes every active mapping. A gateway may hand out a new
// external port on renewal, in which case the registry is rekeyed.
func (t *Traversal) renewAll() {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	for _, e := range entries {
		t.renew(e)
	}
}

func (t *Traversal) renew(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	old := e.mapping
	newPort, err := e.mapper.MapPort(ctx, old)
	if err != nil {
		t.log.Warn("port mapping renewal failed",
			"protocol", old.Protocol,
			"port", old.ExternalPort,
			"error", &MappingError{Op: "renew", Mapping: old, Err: err})
		return
	}

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		t.unmap(ctx, &entry{mapper: e.mapper, mapping: withExternalPort(old, newPort)})
		return
	}
	if newPort != old.ExternalPort {
		delete(t.entries, old.key())
		e.mapping.ExternalPort = newPort
		t.entries[e.mapping.key()] = e
	}
	t.mu.Unlock()

	if newPort != old.ExternalPort {
		t.log.Info("external port changed during renewal",
			"protocol", old.Protocol,
			"oldPort", old.ExternalPort,
			"newPort", newPort)
	}
	t.log.Debug("port mapping renewed", "protocol", old.Protocol, "port", newPort)
}

func withExternalPort(m Mapping, port int) Mapping {
	m.ExternalPort = port
	return m
}

// device binds a discovered PortMapper to the Traversal that records its
// mappings.
type device struct {
	t      *Traversal
	mapper PortMapper
}

func (d *device) ExternalIP(ctx context.Context) (string, error) {
	return d.mapper.GetExternalIP(ctx)
}

func (d *device) MapPort(ctx context.Context, m Mapping) (Mapping, error) {
	return d.t.mapPort(ctx, d.mapper, m)
}
