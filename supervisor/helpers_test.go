package supervisor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type fakeService struct {
	modules  []Module
	startErr error
	onStart  func()

	starts atomic.Int32
	stops  atomic.Int32
	closes atomic.Int32
}

func (f *fakeService) Start() error {
	f.starts.Add(1)
	if f.onStart != nil {
		f.onStart()
	}
	return f.startErr
}

func (f *fakeService) Stop() error {
	f.stops.Add(1)
	return nil
}

func (f *fakeService) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *fakeService) Modules() []Module {
	return f.modules
}

func (f *fakeService) factory() ServiceFactory {
	return func() (Service, error) { return f, nil }
}

// dispatcherFunc adapts a function to CommandDispatcher.
type dispatcherFunc func(string) bool

func (f dispatcherFunc) Handle(cmd string) bool {
	return f(cmd)
}

// recorder keeps every log record for inspection.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

// count returns how many records carry msg.
func (r *recorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.records {
		if rec.Message == msg {
			n++
		}
	}
	return n
}

// attr returns the value of key on the first record carrying msg.
func (r *recorder) attr(msg, key string) (slog.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Message != msg {
			continue
		}
		var (
			val   slog.Value
			found bool
		)
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				val, found = a.Value, true
				return false
			}
			return true
		})
		return val, found
	}
	return slog.Value{}, false
}

// syncBuffer is a goroutine-safe bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// harness wires a Supervisor to an in-memory console and log recorder.
type harness struct {
	t   *testing.T
	sup *Supervisor
	svc *fakeService
	log *recorder
	out *syncBuffer
	in  *io.PipeWriter

	done chan error
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NATForwarding = false
	cfg.PauseOnStop = false
	return cfg
}

func newHarness(t *testing.T, svc *fakeService, cfg Config, opts ...Option) *harness {
	t.Helper()

	pr, pw := io.Pipe()
	h := &harness{
		t:   t,
		svc: svc,
		log: &recorder{},
		out: &syncBuffer{},
		in:  pw,
	}

	opts = append([]Option{
		WithLogger(slog.New(h.log)),
		WithConsole(NewConsole(pr, h.out)),
	}, opts...)
	h.sup = New(svc.factory(), cfg, opts...)
	h.sup.localIP = func() (string, error) { return "192.168.1.10", nil }

	t.Cleanup(func() {
		_ = pw.Close()
		_ = h.sup.Close()
		if h.done != nil {
			select {
			case <-h.done:
			case <-time.After(waitFor):
				t.Error("Run did not return after Close")
			}
		}
	})
	return h
}

// start runs the supervisor in the background and waits for the service.
func (h *harness) start() {
	h.t.Helper()
	h.startContext(context.Background())
}

func (h *harness) startContext(ctx context.Context) {
	h.t.Helper()

	done := make(chan error, 1)
	h.done = done
	go func() {
		done <- h.sup.Run(ctx, nil)
	}()
	require.Eventually(h.t, func() bool {
		return h.svc.starts.Load() == 1
	}, waitFor, time.Millisecond)
}

// send types lines on the console.
func (h *harness) send(lines ...string) {
	h.t.Helper()
	for _, line := range lines {
		_, err := io.WriteString(h.in, line+"\n")
		require.NoError(h.t, err)
	}
}

// wait returns Run's result.
func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		h.done = nil
		return err
	case <-time.After(waitFor):
		h.t.Fatal("Run did not return")
		return nil
	}
}
