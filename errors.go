package nattraversal

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound indicates neither UPnP nor NAT-PMP found a gateway.
	ErrDeviceNotFound = errors.New("nattraversal: no NAT device found")

	// ErrInvalidPort indicates a port outside 1-65535.
	ErrInvalidPort = errors.New("nattraversal: invalid port number")

	// ErrUnsupportedProtocol indicates a protocol other than TCP or UDP.
	ErrUnsupportedProtocol = errors.New("nattraversal: unsupported protocol")

	// ErrReleased indicates the traversal already released its mappings and
	// accepts no new ones.
	ErrReleased = errors.New("nattraversal: mappings released")
)

// MappingError describes a failed operation on a single mapping.
type MappingError struct {
	// Op is "map", "unmap" or "renew".
	Op      string
	Mapping Mapping
	Err     error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("nattraversal %s %s: %v", e.Op, e.Mapping, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
