package nattraversal

import (
	"context"
	"fmt"
	"net"
	"strings"

	natpmp "github.com/jackpal/go-nat-pmp"
)

// natpmpClient is satisfied by *natpmp.Client.
type natpmpClient interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// NATPMPMapper implements PortMapper using the NAT-PMP protocol.
type NATPMPMapper struct {
	client natpmpClient
}

// NewNATPMPMapperContext locates the default gateway and verifies it speaks
// NAT-PMP by asking for the external address.
func NewNATPMPMapperContext(ctx context.Context) (*NATPMPMapper, error) {
	gateway, err := discoverGateway()
	if err != nil {
		return nil, fmt.Errorf("NAT-PMP gateway discovery failed: %w", err)
	}

	n := &NATPMPMapper{client: natpmp.NewClientWithTimeout(gateway, DefaultTimeout)}
	if _, err := n.GetExternalIP(ctx); err != nil {
		return nil, fmt.Errorf("NAT-PMP connectivity test failed: %w", err)
	}

	return n, nil
}

// MapPort creates a port mapping via NAT-PMP. The gateway may assign a
// different external port than the one requested.
func (n *NATPMPMapper) MapPort(ctx context.Context, m Mapping) (int, error) {
	m, err := m.normalize()
	if err != nil {
		return 0, err
	}

	// go-nat-pmp expects lower-case protocol names.
	result, err := await(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return n.client.AddPortMapping(strings.ToLower(m.Protocol), m.InternalPort, m.ExternalPort, int(m.Lifetime.Seconds()))
	})
	if err != nil {
		return 0, fmt.Errorf("NAT-PMP port mapping failed: %w", err)
	}

	return int(result.MappedExternalPort), nil
}

// UnmapPort removes a port mapping via NAT-PMP. A delete request names the
// internal port with a zero external port and zero lifetime (RFC 6886 3.4);
// the external port the gateway assigned plays no part.
func (n *NATPMPMapper) UnmapPort(ctx context.Context, m Mapping) error {
	m, err := m.normalize()
	if err != nil {
		return err
	}

	_, err = await(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return n.client.AddPortMapping(strings.ToLower(m.Protocol), m.InternalPort, 0, 0)
	})
	if err != nil {
		return fmt.Errorf("NAT-PMP port unmapping failed: %w", err)
	}
	return nil
}

// GetExternalIP returns the external IP address via NAT-PMP.
func (n *NATPMPMapper) GetExternalIP(ctx context.Context) (string, error) {
	result, err := await(ctx, n.client.GetExternalAddress)
	if err != nil {
		return "", fmt.Errorf("NAT-PMP external IP lookup failed: %w", err)
	}
	a := result.ExternalIPAddress
	return net.IPv4(a[0], a[1], a[2], a[3]).String(), nil
}

// await runs a blocking NAT-PMP call and abandons it when ctx is done. The
// client's own timeout bounds the abandoned goroutine.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := call()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
