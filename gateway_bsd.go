//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package nattraversal

import (
	"bufio"
	"net"
	"os/exec"
	"strings"
)

// readDefaultGateway asks `netstat -rn` for the routing table. Failure to run
// the command yields nil, nil so the fallback applies.
func readDefaultGateway() (net.IP, error) {
	output, err := exec.Command("netstat", "-rn").Output()
	if err != nil {
		return nil, nil
	}
	return parseNetstatOutput(string(output)), nil
}

// parseNetstatOutput finds the gateway column of the default route. BSD
// variants spell it "default", "0.0.0.0" or "0.0.0.0/0".
func parseNetstatOutput(output string) net.IP {
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "default", "0.0.0.0", "0.0.0.0/0":
		default:
			continue
		}

		gw := fields[1]
		// link#5 and interface names are not addresses
		if strings.Contains(gw, "#") || !strings.Contains(gw, ".") {
			continue
		}
		if i := strings.IndexByte(gw, '%'); i != -1 {
			gw = gw[:i]
		}

		if ip := net.ParseIP(gw).To4(); ip != nil {
			return ip
		}
	}

	return nil
}
