//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package nattraversal

import (
	"net"
	"testing"
)

func TestParseNetstatOutput(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected net.IP
	}{
		{
			name: "macOS default",
			output: `Internet:
Destination        Gateway            Flags        Netif Expire
default            192.168.1.1        UGSc           en0
127.0.0.1          127.0.0.1          UH             lo0
`,
			expected: net.IPv4(192, 168, 1, 1),
		},
		{
			name: "FreeBSD 0.0.0.0",
			output: `Destination        Gateway            Flags    Refs      Use  Netif Expire
0.0.0.0            10.0.0.1           UGS         0        0    em0
`,
			expected: net.IPv4(10, 0, 0, 1),
		},
		{
			name: "Link-local entry then address",
			output: `default            link#5             UCSI           en0
default            172.16.0.1%en0     UGScg          en0
`,
			expected: net.IPv4(172, 16, 0, 1),
		},
		{
			name: "No default route",
			output: `Destination        Gateway            Flags        Netif Expire
127.0.0.1          127.0.0.1          UH             lo0
`,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ip := parseNetstatOutput(tc.output)
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
