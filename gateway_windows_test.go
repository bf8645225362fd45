//go:build windows

package nattraversal

import (
	"net"
	"testing"
)

func TestParseRoutePrint(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected net.IP
	}{
		{
			name: "Standard output",
			output: `IPv4 Route Table
===========================================================================
Active Routes:
Network Destination        Netmask          Gateway       Interface  Metric
          0.0.0.0          0.0.0.0      192.168.1.1    192.168.1.100     25
        127.0.0.0        255.0.0.0         On-link         127.0.0.1    331
===========================================================================
`,
			expected: net.IPv4(192, 168, 1, 1),
		},
		{
			name: "On-link default is skipped",
			output: `Active Routes:
Network Destination        Netmask          Gateway       Interface  Metric
          0.0.0.0          0.0.0.0         On-link      10.8.0.2     35
          0.0.0.0          0.0.0.0        10.0.0.1      10.0.0.50    50
===========================================================================
`,
			expected: net.IPv4(10, 0, 0, 1),
		},
		{
			name: "Rows after the section are ignored",
			output: `Active Routes:
Network Destination        Netmask          Gateway       Interface  Metric
===========================================================================
          0.0.0.0          0.0.0.0      192.168.9.1    192.168.9.2     25
`,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ip := parseRoutePrint(tc.output)
			if tc.expected == nil {
				if ip != nil {
					t.Errorf("Expected nil, got %v", ip)
				}
				return
			}
			if !ip.Equal(tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, ip)
			}
		})
	}
}
