// Package nattraversal discovers NAT gateways over UPnP and NAT-PMP and keeps
// a registry of the port mappings created through them, renewing leases
// until they are released.
package nattraversal

import (
	"context"
	"fmt"
)

// DiscoverPortMapper finds a port mapper, trying UPnP first, then NAT-PMP.
// The context bounds the whole discovery; UPnP SSDP searches can take
// several seconds on busy networks.
func DiscoverPortMapper(ctx context.Context) (PortMapper, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	upnp, upnpErr := NewUPnPMapperContext(ctx)
	if upnpErr == nil {
		return upnp, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled after UPnP attempt: %w", err)
	}

	natpmp, pmpErr := NewNATPMPMapperContext(ctx)
	if pmpErr != nil {
		return nil, fmt.Errorf("%w (UPnP: %v; NAT-PMP: %v)", ErrDeviceNotFound, upnpErr, pmpErr)
	}

	return natpmp, nil
}
