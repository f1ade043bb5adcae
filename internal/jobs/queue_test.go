package jobs

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/network"
	"github.com/mhalvorsen/fetchd/internal/scheduler"
	"github.com/mhalvorsen/fetchd/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeDispatcher struct {
	scheduled []scheduler.Request
	cancelled []int64
}

func (f *fakeDispatcher) Schedule(req scheduler.Request) bool {
	f.scheduled = append(f.scheduled, req)
	return true
}

func (f *fakeDispatcher) Cancel(jobID int64) {
	f.cancelled = append(f.cancelled, jobID)
}

func queueConfig() *config.Config {
	return &config.Config{AllowMeteredNetwork: true}
}

func newTestQueue(t *testing.T, cfg *config.Config, net network.Info) (*Queue, *store.DB, *fakeDispatcher) {
	t.Helper()
	db := setupTestDB(t)
	dispatcher := &fakeDispatcher{}
	q := NewQueue(db, dispatcher, net, cfg, logger.Default())
	return q, db, dispatcher
}

func queueJob(url string) *domain.DownloadJob {
	return &domain.DownloadJob{
		URL:    url,
		Title:  "Title",
		Type:   domain.TypeVideo,
		Format: domain.Format{FormatID: "137", Note: "1080p"},
		Status: domain.StatusProcessing,
	}
}

func TestEnqueueNewJob(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	job := queueJob("https://example.com/a")
	warnings, err := q.Enqueue([]*domain.DownloadJob{job})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
	if job.ID == 0 {
		t.Fatal("Expected job to be persisted")
	}

	got, _ := db.GetJob(job.ID)
	if got.Status != domain.StatusQueued {
		t.Errorf("Expected queued, got %s", got.Status)
	}
	if len(dispatcher.scheduled) != 1 || dispatcher.scheduled[0].JobID != job.ID {
		t.Errorf("Expected one schedule request for the job, got %v", dispatcher.scheduled)
	}
}

func TestEnqueueDuplicateIsIdempotent(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	first := queueJob("https://example.com/a")
	if _, err := q.Enqueue([]*domain.DownloadJob{first}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	second := queueJob("https://example.com/a")
	warnings, err := q.Enqueue([]*domain.DownloadJob{second})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// One logical download: one row, one schedule request, one warning
	if len(warnings) != 1 || !strings.Contains(warnings[0], "already in the queue") {
		t.Errorf("Expected duplicate warning, got %v", warnings)
	}
	if second.ID != 0 {
		t.Error("Expected duplicate not to be persisted")
	}
	jobs, _ := db.ListJobs()
	if len(jobs) != 1 {
		t.Errorf("Expected 1 row, got %d", len(jobs))
	}
	if len(dispatcher.scheduled) != 1 {
		t.Errorf("Expected 1 schedule request, got %d", len(dispatcher.scheduled))
	}
}

func TestEnqueueDifferentTypeIsNotDuplicate(t *testing.T) {
	q, db, _ := newTestQueue(t, queueConfig(), network.Static{})

	video := queueJob("https://example.com/a")
	audio := queueJob("https://example.com/a")
	audio.Type = domain.TypeAudio

	warnings, err := q.Enqueue([]*domain.DownloadJob{video, audio})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
	jobs, _ := db.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(jobs))
	}
}

func TestEnqueueDifferentScheduledStartIsNotDuplicate(t *testing.T) {
	q, db, _ := newTestQueue(t, queueConfig(), network.Static{})

	now := queueJob("https://example.com/a")
	later := queueJob("https://example.com/a")
	later.ScheduledStart = time.Now().Add(time.Hour).UnixMilli()

	warnings, err := q.Enqueue([]*domain.DownloadJob{now, later})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
	jobs, _ := db.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(jobs))
	}
}

func TestEnqueueMidBatchFailureKeepsEarlierJobsScheduled(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	good := queueJob("https://example.com/a")
	// An id without a backing row makes the persistence step fail.
	bad := queueJob("https://example.com/b")
	bad.ID = 999

	if _, err := q.Enqueue([]*domain.DownloadJob{good, bad}); err == nil {
		t.Fatal("Expected error from the unpersistable job")
	}

	// The job accepted before the failure is queued and has its run
	// requested; it must not sit in the queue waiting for the next boot.
	got, _ := db.GetJob(good.ID)
	if got == nil || got.Status != domain.StatusQueued {
		t.Fatalf("Expected first job queued, got %+v", got)
	}
	if len(dispatcher.scheduled) != 1 || dispatcher.scheduled[0].JobID != good.ID {
		t.Errorf("Expected the first job scheduled, got %v", dispatcher.scheduled)
	}
}

func TestEnqueueScheduledStartDelay(t *testing.T) {
	q, _, dispatcher := newTestQueue(t, queueConfig(), network.Static{})
	base := time.Now()
	q.now = func() time.Time { return base }

	job := queueJob("https://example.com/a")
	job.ScheduledStart = base.Add(time.Hour).UnixMilli()

	if _, err := q.Enqueue([]*domain.DownloadJob{job}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if got := dispatcher.scheduled[0].Delay; got != time.Hour {
		t.Errorf("Expected 1h delay, got %v", got)
	}

	// A start time in the past means run now
	past := queueJob("https://example.com/b")
	past.ScheduledStart = base.Add(-time.Hour).UnixMilli()
	if _, err := q.Enqueue([]*domain.DownloadJob{past}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if got := dispatcher.scheduled[1].Delay; got != 0 {
		t.Errorf("Expected no delay, got %v", got)
	}
}

func TestEnqueueMeteredWarning(t *testing.T) {
	cfg := queueConfig()
	cfg.AllowMeteredNetwork = false
	q, _, dispatcher := newTestQueue(t, cfg, network.Static{Metered: true})

	warnings, err := q.Enqueue([]*domain.DownloadJob{queueJob("https://example.com/a")})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "unmetered") {
		t.Errorf("Expected metered warning, got %v", warnings)
	}
	// The warning does not block scheduling; the constraint is carried on
	// the request instead
	if len(dispatcher.scheduled) != 1 || !dispatcher.scheduled[0].RequireUnmetered {
		t.Errorf("Expected constrained schedule request, got %v", dispatcher.scheduled)
	}
}

func TestEnqueueCleansUpTerminalRows(t *testing.T) {
	q, db, _ := newTestQueue(t, queueConfig(), network.Static{})

	stale := queueJob("https://example.com/a")
	stale.Status = domain.StatusError
	if err := db.InsertJob(stale); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	fresh := queueJob("https://example.com/a")
	if _, err := q.Enqueue([]*domain.DownloadJob{fresh}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	jobs, _ := db.ListJobs()
	if len(jobs) != 1 || jobs[0].ID != fresh.ID {
		t.Errorf("Expected the stale terminal row to be removed, got %d rows", len(jobs))
	}
}

func TestRequeue(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	job := queueJob("https://example.com/a")
	job.Status = domain.StatusCancelled
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if _, err := q.Requeue(job.ID); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	got, _ := db.GetJob(job.ID)
	if got.Status != domain.StatusQueued {
		t.Errorf("Expected queued, got %s", got.Status)
	}
	if len(dispatcher.scheduled) != 1 {
		t.Errorf("Expected a schedule request, got %d", len(dispatcher.scheduled))
	}
}

func TestRequeueRejectsNonTerminal(t *testing.T) {
	q, db, _ := newTestQueue(t, queueConfig(), network.Static{})

	job := queueJob("https://example.com/a")
	job.Status = domain.StatusActive
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if _, err := q.Requeue(job.ID); err == nil {
		t.Error("Expected error for non-terminal job")
	}
	if _, err := q.Requeue(999); err == nil {
		t.Error("Expected error for missing job")
	}
}

func TestCancelQueuedJob(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	job := queueJob("https://example.com/a")
	job.Status = domain.StatusQueued
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if err := q.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(dispatcher.cancelled) != 1 || dispatcher.cancelled[0] != job.ID {
		t.Errorf("Expected dispatcher cancel for %d, got %v", job.ID, dispatcher.cancelled)
	}
	got, _ := db.GetJob(job.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", got.Status)
	}
}

func TestCancelActiveJobLeavesStatusToWorker(t *testing.T) {
	q, db, dispatcher := newTestQueue(t, queueConfig(), network.Static{})

	job := queueJob("https://example.com/a")
	job.Status = domain.StatusActive
	if err := db.InsertJob(job); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if err := q.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(dispatcher.cancelled) != 1 {
		t.Error("Expected dispatcher cancel")
	}
	// The running worker observes the kill and records the status itself
	got, _ := db.GetJob(job.ID)
	if got.Status != domain.StatusActive {
		t.Errorf("Expected status untouched, got %s", got.Status)
	}
}
