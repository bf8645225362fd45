package nattraversal

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockPortMapper implements PortMapper in memory for tests.
type MockPortMapper struct {
	mu         sync.RWMutex
	mappings   map[string]Mapping
	externalIP string
	ipErr      error
	latency    time.Duration
	failPorts  map[int]error
	unmapErr   error
	natType    NATType
	rng        *rand.Rand

	mapCalls   []Mapping
	unmapCalls []string
}

// NATType selects how the mock assigns external ports.
type NATType int

const (
	// FullConeNAT keeps the requested external port.
	FullConeNAT NATType = iota
	// RestrictedNAT offsets every external port by 1000.
	RestrictedNAT
	// SymmetricNAT picks a random external port on every request.
	SymmetricNAT
)

// NewMockPortMapper creates a full-cone mock with an RFC 5737 external IP.
func NewMockPortMapper() *MockPortMapper {
	return &MockPortMapper{
		mappings:   make(map[string]Mapping),
		externalIP: "203.0.113.100",
		failPorts:  make(map[int]error),
		natType:    FullConeNAT,
		rng:        rand.New(rand.NewSource(42)), // fixed seed for reproducibility
	}
}

// SetExternalIP sets the mock external IP.
func (m *MockPortMapper) SetExternalIP(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externalIP = ip
}

// SetExternalIPError makes GetExternalIP fail.
func (m *MockPortMapper) SetExternalIPError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipErr = err
}

// SetLatency delays every call, honouring context cancellation.
func (m *MockPortMapper) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// FailPort makes MapPort fail for the given internal port.
func (m *MockPortMapper) FailPort(port int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPorts[port] = err
}

// SetUnmapError makes every UnmapPort call fail.
func (m *MockPortMapper) SetUnmapError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapErr = err
}

// SetNATType sets the port assignment behaviour.
func (m *MockPortMapper) SetNATType(t NATType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.natType = t
}

// MapPort implements PortMapper.
func (m *MockPortMapper) MapPort(ctx context.Context, mapping Mapping) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}

	mapping, err := mapping.normalize()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mapCalls = append(m.mapCalls, mapping)
	if err := m.failPorts[mapping.InternalPort]; err != nil {
		return 0, err
	}

	mapping.ExternalPort = m.assignPort(mapping.ExternalPort)
	m.mappings[mapping.key()] = mapping
	return mapping.ExternalPort, nil
}

// UnmapPort implements PortMapper.
func (m *MockPortMapper) UnmapPort(ctx context.Context, mapping Mapping) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	mapping, err := mapping.normalize()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := mapping.key()
	m.unmapCalls = append(m.unmapCalls, key)
	if m.unmapErr != nil {
		return m.unmapErr
	}
	delete(m.mappings, key)
	return nil
}

// GetExternalIP implements PortMapper.
func (m *MockPortMapper) GetExternalIP(ctx context.Context) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ipErr != nil {
		return "", m.ipErr
	}
	return m.externalIP, nil
}

// ActiveMappings returns a copy of the mappings currently on the mock gateway.
func (m *MockPortMapper) ActiveMappings() map[string]Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Mapping, len(m.mappings))
	for k, v := range m.mappings {
		out[k] = v
	}
	return out
}

// MapCalls returns every MapPort request in order, including failed ones.
func (m *MockPortMapper) MapCalls() []Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mapping(nil), m.mapCalls...)
}

// UnmapCalls returns the "PROTO:port" keys of every UnmapPort request.
func (m *MockPortMapper) UnmapCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.unmapCalls...)
}

func (m *MockPortMapper) wait(ctx context.Context) error {
	m.mu.RLock()
	d := m.latency
	m.mu.RUnlock()

	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockPortMapper) assignPort(requested int) int {
	switch m.natType {
	case RestrictedNAT:
		return requested + 1000
	case SymmetricNAT:
		return 20000 + m.rng.Intn(10000)
	default:
		return requested
	}
}

// MockDiscoverFunc returns a DiscoverFunc yielding mapper, or err when
// mapper is nil.
func MockDiscoverFunc(mapper PortMapper, err error) DiscoverFunc {
	return func(ctx context.Context) (PortMapper, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if mapper == nil {
			return nil, err
		}
		return mapper, nil
	}
}
