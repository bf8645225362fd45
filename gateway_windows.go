//go:build windows

package nattraversal

import (
	"bufio"
	"net"
	"os/exec"
	"strings"
)

// readDefaultGateway asks `route print 0.0.0.0` for the default route.
// Failure to run the command yields nil, nil so the fallback applies.
func readDefaultGateway() (net.IP, error) {
	output, err := exec.Command("route", "print", "0.0.0.0").Output()
	if err != nil {
		return nil, nil
	}
	return parseRoutePrint(string(output)), nil
}

// parseRoutePrint reads the "Active Routes:" section of `route print` and
// returns the gateway of the 0.0.0.0/0.0.0.0 row, skipping On-link entries.
func parseRoutePrint(output string) net.IP {
	scanner := bufio.NewScanner(strings.NewReader(output))
	active := false

	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "Active Routes:") {
			active = true
			continue
		}
		if !active {
			continue
		}
		if strings.HasPrefix(line, "====") {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != "0.0.0.0" || fields[1] != "0.0.0.0" {
			continue
		}
		if fields[2] == "On-link" {
			continue
		}

		if ip := net.ParseIP(fields[2]).To4(); ip != nil {
			return ip
		}
	}

	return nil
}
