package nattraversal

import (
	"net"
	"testing"
)

// TestDiscoverGateway tests the cross-platform gateway discovery function.
func TestDiscoverGateway(t *testing.T) {
	if _, err := localIPv4(); err != nil {
		t.Skipf("no outbound IPv4 route: %v", err)
	}

	t.Run("discoverGateway returns valid IP", func(t *testing.T) {
		gateway, err := discoverGateway()
		if err != nil {
			t.Fatalf("discoverGateway failed: %v", err)
		}
		if gateway.To4() == nil {
			t.Errorf("Expected IPv4 gateway, got: %v", gateway)
		}
		if gateway.Equal(net.IPv4zero) {
			t.Error("Gateway should not be 0.0.0.0")
		}
	})

	t.Run("discoverGatewayFallback ends in .1", func(t *testing.T) {
		gateway, err := discoverGatewayFallback()
		if err != nil {
			t.Fatalf("discoverGatewayFallback failed: %v", err)
		}
		ipv4 := gateway.To4()
		if ipv4 == nil || ipv4[3] != 1 {
			t.Errorf("Expected fallback gateway to end in .1, got %v", gateway)
		}
	})
}

// TestReadDefaultGateway checks the platform implementation does not panic
// and only returns usable addresses.
func TestReadDefaultGateway(t *testing.T) {
	gateway, err := readDefaultGateway()
	if err != nil {
		t.Logf("readDefaultGateway returned error: %v", err)
	}
	if gateway == nil {
		t.Log("readDefaultGateway returned nil (fallback will be used)")
		return
	}
	if gateway.To4() == nil {
		t.Errorf("Expected IPv4 gateway, got: %v", gateway)
	}
	if gateway.Equal(net.IPv4zero) {
		t.Error("Gateway should not be 0.0.0.0")
	}
}
