//go:build linux

package nattraversal

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

const procRoute = "/proc/net/route"

// readDefaultGateway reads the default route from /proc/net/route.
// A missing file or missing default route yields nil, nil.
func readDefaultGateway() (net.IP, error) {
	f, err := os.Open(procRoute)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open routing table: %w", err)
	}
	defer f.Close()

	return parseProcRoute(f)
}

// parseProcRoute scans a /proc/net/route table for the first default route
// (destination 00000000) with a non-zero gateway.
func parseProcRoute(r io.Reader) (net.IP, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty routing table")
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}

		gateway, err := parseHexIP(fields[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse gateway: %w", err)
		}
		if !gateway.Equal(net.IPv4zero) {
			return gateway, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading routing table: %w", err)
	}
	return nil, nil
}

// parseHexIP decodes the little-endian hex form used by the kernel,
// e.g. "0101A8C0" is 192.168.1.1.
func parseHexIP(hexIP string) (net.IP, error) {
	if len(hexIP) != 8 {
		return nil, fmt.Errorf("invalid hex IP length: %d", len(hexIP))
	}

	b, err := hex.DecodeString(hexIP)
	if err != nil {
		return nil, fmt.Errorf("invalid hex IP: %w", err)
	}
	return net.IPv4(b[3], b[2], b[1], b[0]), nil
}
