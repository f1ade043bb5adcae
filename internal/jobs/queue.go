package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/network"
	"github.com/mhalvorsen/fetchd/internal/scheduler"
	"github.com/mhalvorsen/fetchd/internal/store"
)

// Dispatcher is the slice of the scheduler the queue needs.
type Dispatcher interface {
	Schedule(req scheduler.Request) bool
	Cancel(jobID int64)
}

// Queue owns job state transitions between Processing and the worker handoff:
// deduplication, persistence, scheduling delays and cleanup of superseded
// terminal rows.
type Queue struct {
	store      *store.DB
	dispatcher Dispatcher
	network    network.Info
	cfg        *config.Config
	log        *logger.Logger

	// Serializes the duplicate check-then-insert sequence; concurrent
	// Enqueue calls must not both pass the check for the same logical job.
	mu sync.Mutex

	now func() time.Time
}

func NewQueue(db *store.DB, dispatcher Dispatcher, net network.Info, cfg *config.Config, log *logger.Logger) *Queue {
	return &Queue{
		store:      db,
		dispatcher: dispatcher,
		network:    net,
		cfg:        cfg,
		log:        log.WithComponent("queue"),
		now:        time.Now,
	}
}

// Enqueue moves the given jobs into Queued and requests one scheduled run
// per accepted job. It returns user-facing warnings (duplicates, metered
// network); these are informational, never errors. Enqueue only persists and
// schedules; it never waits for any download.
func (q *Queue) Enqueue(incoming []*domain.DownloadJob) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.store.ActiveAndQueuedJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to load active jobs: %w", err)
	}

	var warnings []string
	accepted := 0

	// Each job is scheduled as soon as its row is persisted. A failure later
	// in the batch must not leave an earlier queued row without a scheduled
	// run until the next boot.
	for _, job := range incoming {
		if dup := findDuplicate(existing, job); dup != nil {
			warnings = append(warnings, fmt.Sprintf("%q is already in the queue", displayName(job)))
			continue
		}

		job.Status = domain.StatusQueued
		job.Progress = 0
		if job.ID == 0 {
			if err := q.store.InsertJob(job); err != nil {
				return warnings, fmt.Errorf("failed to insert job: %w", err)
			}
		} else {
			if err := q.store.UpdateJob(job); err != nil {
				return warnings, fmt.Errorf("failed to update job %d: %w", job.ID, err)
			}
		}

		q.dispatcher.Schedule(scheduler.Request{
			JobID:            job.ID,
			Delay:            q.startDelay(job),
			RequireUnmetered: !q.cfg.AllowMeteredNetwork,
		})

		// A requeue supersedes any terminal row left from a previous attempt
		// at the same logical download.
		if err := q.store.DeleteTerminalJobsForURL(job.URL, job.Type, job.ID); err != nil {
			q.log.Warn("Failed to clean up superseded jobs", "job_id", job.ID, "error", err)
		}

		q.log.Info("Job enqueued", "job_id", job.ID, "url", job.URL, "type", job.Type)
		accepted++
		existing = append(existing, job)
	}

	if accepted > 0 && !q.cfg.AllowMeteredNetwork && q.network.IsMetered() {
		warnings = append(warnings, "downloads will wait for an unmetered network")
	}

	return warnings, nil
}

// Requeue re-enters a cancelled or errored job at Queued.
func (q *Queue) Requeue(id int64) ([]string, error) {
	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %d: %w", id, err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if !job.Status.Terminal() {
		return nil, fmt.Errorf("job %d is not in a terminal state", id)
	}
	return q.Enqueue([]*domain.DownloadJob{job})
}

// Cancel stops a queued or active job. For an active job the scheduler kills
// the subprocess and the worker records the Cancelled status itself; for a
// job still waiting to start the status is recorded here.
func (q *Queue) Cancel(id int64) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return fmt.Errorf("failed to load job %d: %w", id, err)
	}
	if job == nil {
		return fmt.Errorf("job %d not found", id)
	}

	q.dispatcher.Cancel(id)

	if job.Status == domain.StatusQueued {
		if err := q.store.SetJobStatus(id, domain.StatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel job %d: %w", id, err)
		}
	}
	q.log.Info("Job cancelled", "job_id", id)
	return nil
}

func (q *Queue) startDelay(job *domain.DownloadJob) time.Duration {
	if job.ScheduledStart == 0 {
		return 0
	}
	delay := time.Duration(job.ScheduledStart-q.now().UnixMilli()) * time.Millisecond
	if delay < 0 {
		return 0
	}
	return delay
}

// findDuplicate returns the first already active/queued job describing the
// same logical download, compared by pure field projection (identity and
// lifecycle fields excluded).
func findDuplicate(existing []*domain.DownloadJob, job *domain.DownloadJob) *domain.DownloadJob {
	for _, candidate := range existing {
		if candidate.ID == job.ID && job.ID != 0 {
			continue
		}
		if candidate.SameRequest(job) {
			return candidate
		}
	}
	return nil
}

func displayName(job *domain.DownloadJob) string {
	if job.Title != "" {
		return job.Title
	}
	return job.URL
}
