package supervisor

import (
	"context"
	"errors"
	"fmt"

	"vawter.tech/stopper"

	natsup "github.com/go-i2p/go-nat-supervisor"
)

// forwardPorts discovers a NAT device and maps a TCP port for every enabled
// module, one after another. Every failure is logged and none of them
// affects the service.
func (s *Supervisor) forwardPorts(ctx *stopper.Context, svc Service) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("port forwarding panicked", "panic", r)
		}
	}()

	if !s.cfg.NATForwarding || s.nat == nil {
		return
	}

	s.log.Info("initializing NAT discovery")

	dev, err := s.discover(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("no NAT device found", "error", err)
		}
		return
	}

	externalIP := s.externalIP(ctx, dev)
	internalIP, err := s.localIP()
	if err != nil {
		s.log.Debug("local address unavailable", "error", err)
		internalIP = ""
	}

	for _, mod := range svc.Modules() {
		if ctx.Err() != nil || ctx.IsStopping() {
			return
		}
		if !mod.Enabled || mod.Port == 0 {
			continue
		}

		m, err := s.mapPort(ctx, dev, mod.Port)
		if errors.Is(err, natsup.ErrReleased) {
			return
		}
		if err != nil {
			s.log.Error("port forwarding failed",
				"module", mod.Name,
				"port", mod.Port,
				"error", err)
			continue
		}

		args := []any{"module", mod.Name, "mapping", m.String()}
		addr := m.Addr(internalIP, externalIP)
		if externalIP != "" {
			args = append(args, "external", addr.ExternalAddr())
		}
		if internalIP != "" {
			args = append(args, "internal", addr.InternalAddr())
		}
		s.log.Info("port forwarded", args...)
	}
}

func (s *Supervisor) discover(ctx context.Context) (natsup.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DiscoveryTimeout)
	defer cancel()
	return s.nat.DiscoverDevice(ctx)
}

// externalIP returns "" when the gateway will not say.
func (s *Supervisor) externalIP(ctx context.Context, dev natsup.Device) string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NATTimeout)
	defer cancel()

	ip, err := dev.ExternalIP(ctx)
	if err != nil {
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.log.Warn("failed to get external IP", "error", err)
		}
		return ""
	}
	s.log.Info("NAT device found", "externalIP", ip)
	return ip
}

func (s *Supervisor) mapPort(ctx context.Context, dev natsup.Device, port int) (natsup.Mapping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NATTimeout)
	defer cancel()

	m, err := dev.MapPort(ctx, natsup.NewTCPMapping(port, s.cfg.MappingDescription))
	if err != nil {
		return m, fmt.Errorf("map TCP port %d: %w", port, err)
	}
	return m, nil
}
