package nattraversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"
)

// upnpClient is the subset of the IGD connection services used here.
// WANIPConnection1, WANIPConnection2 and WANPPPConnection1 all satisfy it.
type upnpClient interface {
	AddPortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
		NewInternalPort uint16,
		NewInternalClient string,
		NewEnabled bool,
		NewPortMappingDescription string,
		NewLeaseDuration uint32,
	) error
	DeletePortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
	) error
	GetExternalIPAddressCtx(ctx context.Context) (string, error)
}

// UPnPMapper implements PortMapper using the UPnP IGD protocol.
type UPnPMapper struct {
	client  upnpClient
	localIP func() (string, error)
}

type upnpService struct {
	name     string
	discover func(context.Context) (upnpClient, error)
}

// upnpServices in order of preference. WANPPPConnection1 covers PPPoE routers.
var upnpServices = []upnpService{
	{"WANIPConnection2", discoverWANIPConnection2},
	{"WANIPConnection1", discoverWANIPConnection1},
	{"WANPPPConnection1", discoverWANPPPConnection1},
}

// NewUPnPMapperContext discovers an IGD and creates a UPnP mapper.
func NewUPnPMapperContext(ctx context.Context) (*UPnPMapper, error) {
	return discoverUPnP(ctx, upnpServices, UPnPAttemptTimeout)
}

// discoverUPnP tries each service with its own window. A parent context of
// len(services)*window reaches every service.
func discoverUPnP(ctx context.Context, services []upnpService, window time.Duration) (*UPnPMapper, error) {
	var errs []error
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled before %s attempt: %w", svc.name, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, window)
		client, err := svc.discover(attemptCtx)
		cancel()
		if err == nil {
			return newUPnPMapper(client), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", svc.name, err))
	}

	return nil, fmt.Errorf("no UPnP IGD devices found: %w", errors.Join(errs...))
}

func newUPnPMapper(client upnpClient) *UPnPMapper {
	return &UPnPMapper{client: client, localIP: LocalIP}
}

func discoverWANIPConnection2(ctx context.Context) (upnpClient, error) {
	clients, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no WANIPConnection2 devices found")
	}
	return clients[0], nil
}

func discoverWANIPConnection1(ctx context.Context) (upnpClient, error) {
	clients, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no WANIPConnection1 devices found")
	}
	return clients[0], nil
}

func discoverWANPPPConnection1(ctx context.Context) (upnpClient, error) {
	clients, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no WANPPPConnection1 devices found")
	}
	return clients[0], nil
}

// MapPort creates a port mapping via UPnP. IGDs honour the requested
// external port or fail, so the returned port always equals m.ExternalPort.
func (u *UPnPMapper) MapPort(ctx context.Context, m Mapping) (int, error) {
	m, err := m.normalize()
	if err != nil {
		return 0, err
	}

	localIP, err := u.localIP()
	if err != nil {
		return 0, fmt.Errorf("failed to get local IP: %w", err)
	}

	err = u.client.AddPortMappingCtx(
		ctx,
		"", // any remote host
		uint16(m.ExternalPort),
		m.Protocol,
		uint16(m.InternalPort),
		localIP,
		true,
		m.Description,
		uint32(m.Lifetime.Seconds()),
	)
	if err != nil {
		return 0, fmt.Errorf("UPnP port mapping failed: %w", err)
	}

	return m.ExternalPort, nil
}

// UnmapPort removes a port mapping via UPnP. IGD rules are keyed by
// external port.
func (u *UPnPMapper) UnmapPort(ctx context.Context, m Mapping) error {
	m, err := m.normalize()
	if err != nil {
		return err
	}

	if err := u.client.DeletePortMappingCtx(ctx, "", uint16(m.ExternalPort), m.Protocol); err != nil {
		return fmt.Errorf("UPnP port unmapping failed: %w", err)
	}
	return nil
}

// GetExternalIP returns the external IP address via UPnP.
func (u *UPnPMapper) GetExternalIP(ctx context.Context) (string, error) {
	ip, err := u.client.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return "", fmt.Errorf("UPnP external IP lookup failed: %w", err)
	}
	return ip, nil
}
