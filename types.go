package nattraversal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PortMapper defines the interface for NAT traversal protocols.
type PortMapper interface {
	MapPort(ctx context.Context, m Mapping) (externalPort int, err error)
	// UnmapPort deletes m from the gateway. UPnP keys the rule by external
	// port, NAT-PMP by internal port.
	UnmapPort(ctx context.Context, m Mapping) error
	GetExternalIP(ctx context.Context) (string, error)
}

// Device is a discovered NAT gateway that can forward ports to this host.
type Device interface {
	// ExternalIP returns the public address of the gateway.
	ExternalIP(ctx context.Context) (string, error)
	// MapPort requests a mapping and returns it with the external port the
	// gateway actually assigned.
	MapPort(ctx context.Context, m Mapping) (Mapping, error)
}

// Mapping is a single port forwarding rule on a NAT device.
type Mapping struct {
	Protocol     string
	InternalPort int
	// ExternalPort defaults to InternalPort when zero.
	ExternalPort int
	Description  string
	// Lifetime is the requested lease. Zero means MappingLifetime.
	Lifetime time.Duration
}

// NewTCPMapping returns a same-port TCP mapping with the given description.
func NewTCPMapping(port int, description string) Mapping {
	return Mapping{
		Protocol:     TCP,
		InternalPort: port,
		ExternalPort: port,
		Description:  description,
	}
}

// String formats the mapping as "TCP 8080->8080".
func (m Mapping) String() string {
	return fmt.Sprintf("%s %d->%d", m.Protocol, m.ExternalPort, m.InternalPort)
}

// key identifies a mapping on the gateway side.
func (m Mapping) key() string {
	return fmt.Sprintf("%s:%d", m.Protocol, m.ExternalPort)
}

// normalize validates m and fills in defaults.
func (m Mapping) normalize() (Mapping, error) {
	m.Protocol = strings.ToUpper(m.Protocol)
	if m.Protocol != TCP && m.Protocol != UDP {
		return m, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, m.Protocol)
	}
	if m.ExternalPort == 0 {
		m.ExternalPort = m.InternalPort
	}
	if err := validPort(m.InternalPort); err != nil {
		return m, err
	}
	if err := validPort(m.ExternalPort); err != nil {
		return m, err
	}
	if m.Lifetime <= 0 {
		m.Lifetime = MappingLifetime
	}
	return m, nil
}

// validPort checks the range before any uint16 conversion.
func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, port)
	}
	return nil
}
