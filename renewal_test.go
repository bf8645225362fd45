package nattraversal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestRenewalStartStop tests renewal lifecycle
func TestRenewalStartStop(t *testing.T) {
	t.Run("Ticks until stopped", func(t *testing.T) {
		var n atomic.Int32
		r := newRenewal(10*time.Millisecond, func() { n.Add(1) })

		r.Start()
		time.Sleep(80 * time.Millisecond)
		r.Stop()

		stopped := n.Load()
		if stopped == 0 {
			t.Fatal("Expected at least one renewal")
		}

		time.Sleep(40 * time.Millisecond)
		if n.Load() > stopped+1 {
			t.Errorf("Renewals continued after stop: %d -> %d", stopped, n.Load())
		}
	})

	t.Run("Multiple starts are safe", func(t *testing.T) {
		r := newRenewal(time.Hour, func() {})
		r.Start()
		r.Start()
		r.Start()
		if !r.running() {
			t.Error("Expected renewal to be running")
		}
		r.Stop()
	})

	t.Run("Multiple stops are safe", func(t *testing.T) {
		r := newRenewal(time.Hour, func() {})
		r.Start()
		r.Stop()
		r.Stop()
		r.Stop()
		if r.running() {
			t.Error("Expected renewal to be stopped")
		}
	})

	t.Run("Restart after stop", func(t *testing.T) {
		var n atomic.Int32
		r := newRenewal(10*time.Millisecond, func() { n.Add(1) })
		r.Start()
		r.Stop()
		r.Start()
		time.Sleep(50 * time.Millisecond)
		r.Stop()
		if n.Load() == 0 {
			t.Error("Expected renewals after restart")
		}
	})

	t.Run("Zero interval never starts", func(t *testing.T) {
		r := newRenewal(0, func() {})
		r.Start()
		if r.running() {
			t.Error("Zero interval renewal should not run")
		}
	})
}

// TestTraversalRenewal tests that active mappings are refreshed
func TestTraversalRenewal(t *testing.T) {
	t.Run("Renewal keeps mappings alive", func(t *testing.T) {
		mock := NewMockPortMapper()
		tr := newTestTraversal(mock, WithRenewalInterval(20*time.Millisecond))
		defer tr.ReleaseAll(context.Background())

		dev, _ := tr.DiscoverDevice(context.Background())
		if _, err := dev.MapPort(context.Background(), NewTCPMapping(8080, "")); err != nil {
			t.Fatalf("MapPort failed: %v", err)
		}

		time.Sleep(100 * time.Millisecond)

		if n := len(mock.MapCalls()); n < 2 {
			t.Errorf("Expected renewals after the initial mapping, got %d calls", n)
		}
		if _, ok := mock.ActiveMappings()["TCP:8080"]; !ok {
			t.Error("Mapping should persist after renewal")
		}
	})

	t.Run("External port change rekeys the registry", func(t *testing.T) {
		mock := NewMockPortMapper()
		tr := newTestTraversal(mock, WithRenewalInterval(time.Hour))
		defer tr.ReleaseAll(context.Background())

		dev, _ := tr.DiscoverDevice(context.Background())
		m, _ := dev.MapPort(context.Background(), NewTCPMapping(8080, ""))

		mock.SetNATType(SymmetricNAT)
		tr.renewAll()

		got := tr.Mappings()
		if len(got) != 1 {
			t.Fatalf("Expected 1 mapping, got %d", len(got))
		}
		if got[0].ExternalPort == m.ExternalPort {
			t.Errorf("Expected external port to change from %d", m.ExternalPort)
		}
		if got[0].InternalPort != 8080 {
			t.Errorf("Internal port should stay 8080, got %d", got[0].InternalPort)
		}
	})

	t.Run("Renewal failure keeps the record", func(t *testing.T) {
		mock := NewMockPortMapper()
		tr := newTestTraversal(mock, WithRenewalInterval(time.Hour))
		defer tr.ReleaseAll(context.Background())

		dev, _ := tr.DiscoverDevice(context.Background())
		dev.MapPort(context.Background(), NewTCPMapping(8080, ""))

		mock.FailPort(8080, context.DeadlineExceeded)
		tr.renewAll()

		if n := len(tr.Mappings()); n != 1 {
			t.Errorf("Expected mapping to stay registered, got %d", n)
		}
	})
}
