package modulehost

import (
	"context"
	"io"
	"net"
)

// Banner writes the module name and a newline, then hangs up. It is the
// handler of modules without one, so a port check can tell which module
// answered.
func Banner(module string) Handler {
	return HandlerFunc(func(_ context.Context, conn net.Conn) {
		_, _ = io.WriteString(conn, module+"\n")
	})
}

// Echo copies everything it reads back to the peer until either side
// closes.
func Echo() Handler {
	return HandlerFunc(func(_ context.Context, conn net.Conn) {
		_, _ = io.Copy(conn, conn)
	})
}
