// Package scheduler dispatches one worker execution per job id. It mirrors
// the contract of a platform work scheduler: unique-work coalescing keyed by
// job id (a second request for a live key is a no-op), a per-request start
// delay, an optional unmetered-network constraint, and no automatic retry of
// failed runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/network"
)

// Request asks for one execution of the job with the given id.
type Request struct {
	JobID            int64
	Delay            time.Duration
	RequireUnmetered bool
}

// Runner is the execution wrapper contract: one job id in, one terminal
// result out. A returned error is terminal; the scheduler never retries.
type Runner interface {
	Run(ctx context.Context, jobID int64) error
}

type Scheduler struct {
	runner  Runner
	network network.Info
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[int64]context.CancelFunc

	// How often a constrained run re-checks the network while waiting.
	networkPoll time.Duration
}

func New(runner Runner, net network.Info, log *logger.Logger, networkPoll time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:      runner,
		network:     net,
		log:         log.WithComponent("scheduler"),
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[int64]context.CancelFunc),
		networkPoll: networkPoll,
	}
}

// Schedule requests one run for the job id. If a run for the same id is
// already pending or active the request is coalesced into it (KEEP policy)
// and Schedule reports false.
func (s *Scheduler) Schedule(req Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[req.JobID]; exists {
		s.log.Debug("Job already scheduled, keeping existing work", "job_id", req.JobID)
		return false
	}

	runCtx, cancelRun := context.WithCancel(s.ctx)
	s.pending[req.JobID] = cancelRun

	s.wg.Add(1)
	go s.execute(runCtx, req)
	return true
}

// Cancel stops the pending or active run for the job id. For an active run
// this kills the underlying subprocess through the run context.
func (s *Scheduler) Cancel(jobID int64) {
	s.mu.Lock()
	cancelRun, ok := s.pending[jobID]
	s.mu.Unlock()
	if ok {
		cancelRun()
	}
}

// Close cancels every run and waits for the workers to drain.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) execute(ctx context.Context, req Request) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.pending, req.JobID)
		s.mu.Unlock()
	}()

	if req.Delay > 0 {
		timer := time.NewTimer(req.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}

	if req.RequireUnmetered && !s.awaitUnmetered(ctx) {
		return
	}

	if err := s.runner.Run(ctx, req.JobID); err != nil {
		// Terminal by contract; the user requeues explicitly if they want a retry.
		s.log.Warn("Job run finished with failure", "job_id", req.JobID, "error", err)
	}
}

// awaitUnmetered blocks until the network is unmetered or the run context is
// cancelled, reporting whether the run may proceed.
func (s *Scheduler) awaitUnmetered(ctx context.Context) bool {
	if !s.network.IsMetered() {
		return true
	}
	s.log.Info("Waiting for unmetered network")

	ticker := time.NewTicker(s.networkPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.network.IsMetered() {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}
