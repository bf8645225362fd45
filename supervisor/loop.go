package supervisor

import (
	"errors"
	"io"
	"strings"
	"time"
)

// stopPrompt is shown after the stop command until a key is pressed.
const stopPrompt = "Stopped the server. Press any key to continue..."

// commandLoop reads console input until Stop is called or the service goes
// away. It always signals loop on the way out.
func (s *Supervisor) commandLoop() {
	defer s.loop.Signal()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("command loop panicked", "panic", r)
		}
	}()
	defer s.log.Debug("command loop stopped")

	for {
		tick := time.Now()

		line, err := s.console.ReadLine(s.ctx)
		switch {
		case err == nil:
			s.handleInput(line)
		case s.cancelled():
			return
		case errors.Is(err, io.EOF):
			// Nothing more to read; keep the service up until asked to stop.
			<-s.ctx.Done()
			return
		default:
			s.log.Warn("console read failed", "error", err)
			<-s.ctx.Done()
			return
		}

		if s.cancelled() || s.currentService() == nil {
			return
		}
		s.throttle(tick)
	}
}

// throttle sleeps out the rest of the tick that began at start.
func (s *Supervisor) throttle(start time.Time) {
	rest := s.cfg.TickInterval - time.Since(start)
	if rest <= 0 {
		return
	}

	t := time.NewTimer(rest)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}

func (s *Supervisor) handleInput(line string) {
	if line == "" {
		return
	}
	cmd, ok := strings.CutPrefix(line, s.cfg.CommandPrefix)
	if !ok {
		return
	}
	s.executeCommand(cmd)
}

func (s *Supervisor) executeCommand(cmd string) {
	lower := strings.ToLower(cmd)
	switch {
	case strings.HasPrefix(lower, "stop"):
		s.stopCommand()
	case strings.HasPrefix(lower, "clear"):
		s.console.Clear()
	default:
		if !s.dispatch(cmd) {
			s.log.Warn("invalid command", "command", cmd)
		}
	}
}

func (s *Supervisor) stopCommand() {
	s.mu.Lock()
	s.lastStop = time.Now()
	ctx := s.runCtx
	s.mu.Unlock()

	s.Stop()
	s.releaseMappings()

	if !s.cfg.PauseOnStop {
		return
	}
	s.console.Println(stopPrompt)
	if err := s.console.WaitKey(ctx); err != nil {
		s.log.Debug("stop acknowledgement abandoned", "error", err)
	}
}

// dispatch hands cmd to the dispatcher. A panicking handler counts as
// handled; the panic is logged.
func (s *Supervisor) dispatch(cmd string) (handled bool) {
	if s.dispatcher == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("command handler panicked", "command", cmd, "panic", r)
			handled = true
		}
	}()
	return s.dispatcher.Handle(cmd)
}
