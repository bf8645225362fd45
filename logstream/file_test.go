package logstream

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "natsup.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	lf, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, lf.Path())

	_, err = io.WriteString(lf, "new\n")
	require.NoError(t, err)
	require.NoError(t, lf.Close())
	require.NoError(t, lf.Close())

	assert.Equal(t, "old\nnew\n", readFile(t, path))

	_, err = lf.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "natsup.log")
	lf, err := OpenFile(path)
	require.NoError(t, err)
	defer lf.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileReopensAfterRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "natsup.log")
	lf, err := OpenFile(path)
	require.NoError(t, err)
	defer lf.Close()

	_, err = io.WriteString(lf, "before\n")
	require.NoError(t, err)

	rotated := path + ".1"
	require.NoError(t, os.Rename(path, rotated))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	_, err = io.WriteString(lf, "after\n")
	require.NoError(t, err)

	assert.Equal(t, "before\n", readFile(t, rotated))
	assert.Equal(t, "after\n", readFile(t, path))
}

func TestFileAsSubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "natsup.log")
	lf, err := OpenFile(path)
	require.NoError(t, err)

	stream := New(slog.LevelInfo)
	unsubscribe := stream.Subscribe(lf)
	slog.New(stream).Info("service started", "modules", 2)
	unsubscribe()
	require.NoError(t, lf.Close())

	got := readFile(t, path)
	assert.True(t, strings.Contains(got, "msg=\"service started\""), got)
	assert.Contains(t, got, "modules=2")
}

func TestFileManualReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "natsup.log")
	lf, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, lf.Reopen())
	_, err = io.WriteString(lf, "line\n")
	require.NoError(t, err)
	require.NoError(t, lf.Close())

	assert.Equal(t, "line\n", readFile(t, path))
	assert.ErrorIs(t, lf.Reopen(), os.ErrClosed)
}
