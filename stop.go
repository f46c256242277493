package procmgr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/axondata/go-procmgr/internal/proctree"
)

type stopConfig struct {
	timeout time.Duration
}

// StopOption configures a single Stop call
type StopOption func(*stopConfig)

// WithTermTimeout overrides the graceful termination budget for one Stop
func WithTermTimeout(d time.Duration) StopOption {
	return func(c *stopConfig) {
		c.timeout = d
	}
}

// Stop terminates the target and every descendant found at the time of the
// call. Descendants get SIGTERM before the target; whatever is still running
// once the timeout (or ctx) expires is sent SIGKILL. The target is removed
// from the registry either way.
//
// Stopping a process that is not registered is a logged no-op, so Stop is
// idempotent. The only error is ErrClosed.
func (s *Supervisor) Stop(ctx context.Context, target Target, opts ...StopOption) (StopResult, error) {
	cfg := stopConfig{timeout: s.StopTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if s.isClosed() {
		return StopResult{}, &OpError{Op: OpStop, PID: target.PID, Name: target.Name, Err: ErrClosed}
	}
	return s.stopTarget(ctx, target, cfg.timeout), nil
}

func (s *Supervisor) stopTarget(ctx context.Context, target Target, timeout time.Duration) StopResult {
	start := time.Now()

	s.mu.Lock()
	s.purgeLocked()
	p := s.findLocked(target)
	if p == nil {
		s.mu.Unlock()
		s.logger.Warn("no managed process to stop", "target", target.String())
		return StopResult{}
	}
	if p.stopping {
		s.mu.Unlock()
		s.logger.Warn("process is already stopping", "pid", p.pid, "name", p.name)
		select {
		case <-p.stopped:
		case <-ctx.Done():
		}
		return StopResult{PID: p.pid, Name: p.name, Found: true, Duration: time.Since(start)}
	}
	p.stopping = true
	s.mu.Unlock()

	res := s.terminate(ctx, p, timeout)

	s.mu.Lock()
	s.removeLocked(p)
	s.mu.Unlock()
	close(p.stopped)

	res.Duration = time.Since(start)
	s.logger.Info("process stopped",
		"pid", p.pid,
		"name", p.name,
		"descendants", len(res.Descendants),
		"forced", len(res.Forced),
		"duration", res.Duration)
	return res
}

// terminate runs the SIGTERM, wait, SIGKILL escalation for p and its tree
func (s *Supervisor) terminate(ctx context.Context, p *managedProcess, timeout time.Duration) StopResult {
	res := StopResult{PID: p.pid, Name: p.name, Found: true}
	log := s.logger.With("pid", p.pid, "name", p.name)

	// A reaped pid may already belong to someone else.
	if p.exited() {
		return res
	}

	log.Info("stopping process")

	desc, err := proctree.Descendants(p.pid)
	if err != nil {
		log.Warn("listing descendants failed", "error", err)
	}
	res.Descendants = desc

	for _, pid := range desc {
		log.Info("terminating descendant", "child", pid)
		if _, err := proctree.Signal(pid, unix.SIGTERM); err != nil {
			log.Warn("terminating descendant failed", "child", pid, "error", err)
		}
	}
	s.signalTarget(log, p, unix.SIGTERM)

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	stragglers := s.awaitExit(ctx, p, desc, deadline)
	if len(stragglers) == 0 {
		return res
	}

	var forcedDesc []int
	for _, pid := range stragglers {
		log.Warn("process did not exit in time, killing", "straggler", pid, "timeout", timeout)
		if pid == p.pid {
			s.signalTarget(log, p, unix.SIGKILL)
		} else {
			if _, err := proctree.Signal(pid, unix.SIGKILL); err != nil {
				log.Warn("killing descendant failed", "child", pid, "error", err)
			}
			forcedDesc = append(forcedDesc, pid)
		}
		res.Forced = append(res.Forced, pid)
	}

	survivors := s.awaitExit(context.WithoutCancel(ctx), p, forcedDesc, time.Now().Add(s.KillGrace))
	for _, pid := range survivors {
		log.Warn("process still running after kill", "straggler", pid)
	}
	res.Survivors = survivors
	return res
}

func (s *Supervisor) signalTarget(log *slog.Logger, p *managedProcess, sig unix.Signal) {
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("signalling process failed", "signal", sig.String(), "error", err)
	}
}

// awaitExit polls until the target and every pid in desc have exited, the
// deadline passes or ctx is done. It returns what is still alive,
// descendants first.
func (s *Supervisor) awaitExit(ctx context.Context, p *managedProcess, desc []int, deadline time.Time) []int {
	alive := func() []int {
		out := proctree.AliveAny(desc)
		if !p.exited() {
			out = append(out, p.pid)
		}
		return out
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		left := alive()
		if len(left) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return alive()
		case <-ctx.Done():
			return alive()
		}
	}
}
