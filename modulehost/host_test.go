package modulehost

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-nat-supervisor/supervisor"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newTestHost(t *testing.T, modules []supervisor.Module, opts ...Option) *Host {
	t.Helper()
	opts = append([]Option{
		WithBindHost("127.0.0.1"),
		WithGracePeriod(50 * time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	h := New(modules, opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func TestHostServesModules(t *testing.T) {
	modules := []supervisor.Module{
		{Name: "web", Port: freePort(t), Enabled: true},
		{Name: "echo", Port: freePort(t), Enabled: true},
		{Name: "disabled", Port: freePort(t), Enabled: false},
		{Name: "worker", Port: 0, Enabled: true},
	}
	h := newTestHost(t, modules, WithHandler("echo", Echo()))
	require.NoError(t, h.Start())
	require.NoError(t, h.Start())

	line, err := bufio.NewReader(dial(t, h.Addr("web"))).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "web\n", line)

	conn := dial(t, h.Addr("echo"))
	_, err = io.WriteString(conn, "ping\n")
	require.NoError(t, err)
	line, err = bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)

	assert.Nil(t, h.Addr("disabled"))
	assert.Nil(t, h.Addr("worker"))
	assert.Equal(t, modules, h.Modules())

	webAddr := h.Addr("web").String()
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())

	_, err = net.DialTimeout("tcp", webAddr, 200*time.Millisecond)
	assert.Error(t, err)
	require.NoError(t, h.Close())
}

func TestHostStartFailureClosesListeners(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	free := freePort(t)
	h := newTestHost(t, []supervisor.Module{
		{Name: "ok", Port: free, Enabled: true},
		{Name: "taken", Port: busy.Addr().(*net.TCPAddr).Port, Enabled: true},
	})

	err = h.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taken")
	assert.Nil(t, h.Addr("ok"))

	// The port opened before the failure was released.
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(free)))
	require.NoError(t, err)
	_ = l.Close()
}

func TestHostStartAfterStop(t *testing.T) {
	h := newTestHost(t, nil)
	require.NoError(t, h.Stop())
	assert.ErrorIs(t, h.Start(), ErrStopped)
}

func TestHostCloseEndsLingeringConnections(t *testing.T) {
	served := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, conn net.Conn) {
		close(served)
		_, _ = io.Copy(io.Discard, conn)
	})

	h := newTestHost(t, []supervisor.Module{{Name: "idle", Port: freePort(t), Enabled: true}},
		WithHandler("idle", handler))
	require.NoError(t, h.Start())

	conn := dial(t, h.Addr("idle"))
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not served")
	}

	closed := make(chan error, 1)
	go func() { closed <- h.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not end the idle connection")
	}

	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestHostHandlerPanic(t *testing.T) {
	handler := HandlerFunc(func(context.Context, net.Conn) {
		panic("handler exploded")
	})
	h := newTestHost(t, []supervisor.Module{{Name: "bad", Port: freePort(t), Enabled: true}},
		WithHandler("bad", handler))
	require.NoError(t, h.Start())

	conn := dial(t, h.Addr("bad"))
	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	// The listener survives.
	_, err = dial(t, h.Addr("bad")).Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
