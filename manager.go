package procmgr

import (
	"context"
	"sync"
)

// StopAll stops every registered process concurrently, at most Concurrency
// at a time. Processes that survive SIGKILL are reported in a MultiError.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	s.purgeLocked()
	pids := make([]int, 0, len(s.procs))
	for _, p := range s.procs {
		pids = append(pids, p.pid)
	}
	s.mu.Unlock()

	if len(pids) == 0 {
		return nil
	}

	s.logger.Info("stopping all processes", "count", len(pids))

	return s.execute(ctx, pids, func(ctx context.Context, pid int) error {
		res := s.stopTarget(ctx, ByPID(pid), s.StopTimeout)
		if len(res.Survivors) > 0 {
			return &OpError{Op: OpStop, PID: pid, Name: res.Name, Err: ErrSurvived}
		}
		return nil
	})
}

// StopMany stops each target concurrently, at most Concurrency at a time
func (s *Supervisor) StopMany(ctx context.Context, targets ...Target) error {
	if s.isClosed() {
		return &OpError{Op: OpStop, Err: ErrClosed}
	}

	pids := make([]int, 0, len(targets))
	s.mu.Lock()
	for _, t := range targets {
		if p := s.findLocked(t); p != nil {
			pids = append(pids, p.pid)
		} else {
			s.logger.Warn("no managed process to stop", "target", t.String())
		}
	}
	s.mu.Unlock()

	return s.execute(ctx, pids, func(ctx context.Context, pid int) error {
		res := s.stopTarget(ctx, ByPID(pid), s.StopTimeout)
		if len(res.Survivors) > 0 {
			return &OpError{Op: OpStop, PID: pid, Name: res.Name, Err: ErrSurvived}
		}
		return nil
	})
}

func (s *Supervisor) execute(ctx context.Context, pids []int, op func(context.Context, int) error) error {
	if len(pids) == 0 {
		return nil
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, s.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}

	for _, pid := range pids {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()

			// Acquire semaphore slot. A cancelled ctx only shortens the
			// graceful phase of each stop, so every pid still gets one.
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := op(ctx, pid); err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
			}
		}(pid)
	}

	wg.Wait()

	return merr.Err()
}
