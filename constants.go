package nattraversal

import "time"

// Lease management for active port mappings
const (
	RenewalInterval = 45 * time.Minute
	MappingLifetime = 90 * time.Minute // twice the renewal interval

	// DefaultTimeout bounds a single discovery, lookup or mapping request.
	DefaultTimeout = 2 * time.Second
)

// Discovery budget. goupnp spends a fixed SSDP window on every search and
// refuses to search with less than a second left on the context.
const (
	ssdpSearchTime = 2 * time.Second

	// UPnPAttemptTimeout bounds one service search plus the fetch of the
	// device description.
	UPnPAttemptTimeout = ssdpSearchTime + time.Second

	// DiscoveryTimeout lets every UPnP search use its full window and still
	// leaves NAT-PMP one request timeout.
	DiscoveryTimeout = 3*UPnPAttemptTimeout + DefaultTimeout
)

// Protocol names accepted by PortMapper implementations.
const (
	TCP = "TCP"
	UDP = "UDP"
)
