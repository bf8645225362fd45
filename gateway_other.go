//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package nattraversal

import "net"

// readDefaultGateway has no routing table source on this platform
// (android without /proc, ios, plan9, js/wasm); the fallback applies.
func readDefaultGateway() (net.IP, error) {
	return nil, nil
}
