package nattraversal

import (
	"fmt"
	"net"
)

// probeAddr is only used to select a route; no packets are sent.
const probeAddr = "8.8.8.8:80"

// discoverGateway finds the default gateway for NAT-PMP. The routing table
// is read with a platform-specific method; when that yields nothing the
// gateway is guessed from the local address.
func discoverGateway() (net.IP, error) {
	if gateway, err := readDefaultGateway(); err == nil && gateway != nil {
		return gateway, nil
	}
	return discoverGatewayFallback()
}

// discoverGatewayFallback assumes the router sits at .1 in the subnet of the
// outbound interface, which holds for most home and office networks.
func discoverGatewayFallback() (net.IP, error) {
	ip, err := localIPv4()
	if err != nil {
		return nil, err
	}
	return net.IPv4(ip[0], ip[1], ip[2], 1), nil
}

// localIPv4 returns the address of the interface that routes to the internet.
func localIPv4() (net.IP, error) {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to determine local IP: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address type: %T", conn.LocalAddr())
	}
	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("local address %s is not IPv4", addr.IP)
	}
	return ip, nil
}

// LocalIP returns the IPv4 address this host uses for outbound traffic.
func LocalIP() (string, error) {
	ip, err := localIPv4()
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}
