package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"
)

// clearScreen moves the cursor home and erases the display.
const clearScreen = "\033[H\033[2J"

// Console is the operator's terminal. Input is read by a background
// goroutine so that ReadLine and WaitKey can be abandoned when their
// context is cancelled. The goroutine starts on first use and lives until
// the input source returns an error.
type Console struct {
	in  io.Reader
	out io.Writer

	fd     int
	isTerm bool

	startOnce sync.Once
	chunks    chan []byte
	readErr   error // written before chunks is closed

	// pending and eof are only touched by the goroutine calling
	// ReadLine/WaitKey.
	pending []byte
	eof     bool

	outMu sync.Mutex
}

// NewConsole creates a Console. When in is a terminal, WaitKey switches it
// to raw mode so a single key press is enough.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:     in,
		out:    out,
		chunks: make(chan []byte),
	}
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		c.fd = int(f.Fd())
		c.isTerm = term.IsTerminal(c.fd)
	}
	return c
}

func (c *Console) start() {
	c.startOnce.Do(func() { go c.readLoop() })
}

func (c *Console) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			c.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			c.readErr = err
			close(c.chunks)
			return
		}
	}
}

// receive blocks for the next chunk of input. It returns false at end of
// input.
func (c *Console) receive(ctx context.Context) (bool, error) {
	c.start()
	select {
	case chunk, ok := <-c.chunks:
		if !ok {
			c.eof = true
			return false, nil
		}
		c.pending = append(c.pending, chunk...)
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Console) inputErr() error {
	if c.readErr == nil || errors.Is(c.readErr, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("console read: %w", c.readErr)
}

// ReadLine returns the next line without its terminator. It returns
// ctx.Err() when ctx is done first, and io.EOF (or the read error) once the
// input is exhausted.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}

		if c.eof {
			if len(c.pending) > 0 {
				line := string(c.pending)
				c.pending = nil
				return strings.TrimRight(line, "\r"), nil
			}
			return "", c.inputErr()
		}

		if _, err := c.receive(ctx); err != nil {
			return "", err
		}
	}
}

// WaitKey blocks until the operator presses a key, input ends, or ctx is
// done. Input already typed ahead counts as the key press.
func (c *Console) WaitKey(ctx context.Context) error {
	if len(c.pending) > 0 {
		c.consumeKey()
		return nil
	}
	if c.eof {
		return nil
	}

	if c.isTerm {
		if old, err := term.MakeRaw(c.fd); err == nil {
			defer term.Restore(c.fd, old)
		}
	}

	got, err := c.receive(ctx)
	if got {
		c.consumeKey()
	}
	return err
}

// consumeKey drops one key press from pending: a full line in cooked mode,
// the whole chunk in raw mode.
func (c *Console) consumeKey() {
	if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
		c.pending = c.pending[i+1:]
		return
	}
	c.pending = nil
}

// Clear erases the display.
func (c *Console) Clear() {
	_, _ = io.WriteString(c, clearScreen)
}

// Println writes a line to the console.
func (c *Console) Println(a ...any) {
	_, _ = fmt.Fprintln(c, a...)
}

// Write implements io.Writer so the console can subscribe to a log stream.
// Writes are serialized with Println and Clear.
func (c *Console) Write(p []byte) (int, error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.Write(p)
}
