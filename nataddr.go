package nattraversal

import (
	"net"
	"strconv"
	"strings"
)

// NATAddr is a network address with both sides of a NAT mapping.
type NATAddr struct {
	network      string
	internalAddr string
	externalAddr string
}

// NewNATAddr creates a new NATAddr with internal and external addresses.
func NewNATAddr(network, internalAddr, externalAddr string) *NATAddr {
	return &NATAddr{
		network:      network,
		internalAddr: internalAddr,
		externalAddr: externalAddr,
	}
}

// Addr describes where m is reachable: externalIP on the public side,
// internalHost on the local side.
func (m Mapping) Addr(internalHost, externalIP string) *NATAddr {
	return NewNATAddr(
		strings.ToLower(m.Protocol),
		net.JoinHostPort(internalHost, strconv.Itoa(m.InternalPort)),
		net.JoinHostPort(externalIP, strconv.Itoa(m.ExternalPort)),
	)
}

// Network returns "tcp" or "udp".
func (a *NATAddr) Network() string {
	return a.network
}

// String returns the external address, the one remote peers dial.
func (a *NATAddr) String() string {
	return a.externalAddr
}

// InternalAddr returns the local side of the mapping.
func (a *NATAddr) InternalAddr() string {
	return a.internalAddr
}

// ExternalAddr returns the public side of the mapping.
func (a *NATAddr) ExternalAddr() string {
	return a.externalAddr
}
