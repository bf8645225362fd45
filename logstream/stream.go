// Package logstream provides a process-wide slog.Handler whose output can be
// mirrored to any number of writers that subscribe and unsubscribe at runtime.
package logstream

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Stream fans log records out to its subscribers. The zero value is not
// usable; call New.
type Stream struct {
	hub   *hub
	level slog.Leveler
	ops   []func(slog.Handler) slog.Handler
}

type hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	mu sync.Mutex // serializes writes to w
	w  io.Writer
	h  slog.Handler
}

func (s *subscriber) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// New returns a Stream dropping records below level.
func New(level slog.Leveler) *Stream {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Stream{
		hub:   &hub{subs: make(map[int]*subscriber)},
		level: level,
	}
}

// Subscribe mirrors every record to w in slog text format until the returned
// function is called. Unsubscribing twice is harmless.
func (s *Stream) Subscribe(w io.Writer) (unsubscribe func()) {
	sub := &subscriber{w: w}
	sub.h = slog.NewTextHandler(sub, &slog.HandlerOptions{Level: slog.LevelDebug})

	s.hub.mu.Lock()
	id := s.hub.nextID
	s.hub.nextID++
	s.hub.subs[id] = sub
	s.hub.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hub.mu.Lock()
			delete(s.hub.subs, id)
			s.hub.mu.Unlock()
		})
	}
}

// Subscribers reports the number of attached writers.
func (s *Stream) Subscribers() int {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return len(s.hub.subs)
}

// Enabled implements slog.Handler.
func (s *Stream) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.level.Level()
}

// Handle implements slog.Handler. A failing subscriber does not prevent
// delivery to the others; the first error is returned.
func (s *Stream) Handle(ctx context.Context, r slog.Record) error {
	s.hub.mu.RLock()
	subs := make([]*subscriber, 0, len(s.hub.subs))
	for _, sub := range s.hub.subs {
		subs = append(subs, sub)
	}
	s.hub.mu.RUnlock()

	var first error
	for _, sub := range subs {
		h := sub.h
		for _, op := range s.ops {
			h = op(h)
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithAttrs implements slog.Handler.
func (s *Stream) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (s *Stream) WithGroup(name string) slog.Handler {
	return s.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *Stream) with(op func(slog.Handler) slog.Handler) *Stream {
	ops := make([]func(slog.Handler) slog.Handler, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	return &Stream{hub: s.hub, level: s.level, ops: append(ops, op)}
}
