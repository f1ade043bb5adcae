// Package downloader is the execution wrapper: it takes a job id from the
// scheduler, runs the external tool for it and drives the job to a terminal
// state, finalizing output files on success.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/notify"
	"github.com/mhalvorsen/fetchd/internal/storage"
	"github.com/mhalvorsen/fetchd/internal/store"
	"github.com/mhalvorsen/fetchd/internal/tagging"
	"github.com/mhalvorsen/fetchd/internal/ytdlp"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrStaleTrigger = errors.New("job is not queued")
	ErrCancelled    = errors.New("download was cancelled")
)

// CommandRunner runs the external tool; satisfied by ytdlp.Executor.
type CommandRunner interface {
	Run(ctx context.Context, args []string, onProgress ytdlp.ProgressFunc) error
}

// InfoClient is the source-resolver collaborator boundary.
type InfoClient interface {
	FetchMissingInfo(ctx context.Context, url string) (*domain.MediaInfo, error)
	FetchFullResult(ctx context.Context, url string) ([]*domain.ResultItem, error)
}

type Worker struct {
	store    *store.DB
	synth    *ytdlp.Synthesizer
	runner   CommandRunner
	info     InfoClient
	notifier notify.Notifier
	cfg      *config.Config
	log      *logger.Logger
}

func NewWorker(db *store.DB, synth *ytdlp.Synthesizer, runner CommandRunner, info InfoClient, notifier notify.Notifier, cfg *config.Config, log *logger.Logger) *Worker {
	return &Worker{
		store:    db,
		synth:    synth,
		runner:   runner,
		info:     info,
		notifier: notifier,
		cfg:      cfg,
		log:      log.WithComponent("downloader"),
	}
}

// Run executes one download to a terminal state. The result is final for
// this run: the scheduler never retries, the user requeues explicitly.
func (w *Worker) Run(ctx context.Context, jobID int64) error {
	job, err := w.store.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	// Guards against duplicate or stale triggers; no state is touched.
	if job.Status != domain.StatusQueued {
		return fmt.Errorf("%w: job %d is %s", ErrStaleTrigger, jobID, job.Status)
	}

	log := w.log.WithJob(job.ID, string(job.Type))

	if err := w.store.SetJobStatus(job.ID, domain.StatusActive); err != nil {
		return fmt.Errorf("failed to mark job %d active: %w", jobID, err)
	}
	job.Status = domain.StatusActive

	// Fill in missing descriptive fields concurrently with the download; the
	// result is joined at finalize time so a fast download cannot lose it.
	// Every exit path below drains the channel: the terminal status must be
	// final by the time Run returns, with no goroutine still writing.
	enrichDone := w.startEnrichment(ctx, job, log)

	tempDir := w.tempDir(job.ID)
	if err := resetDir(tempDir); err != nil {
		w.fail(job, log, nil, err)
		<-enrichDone
		return err
	}

	args, err := w.synth.Synthesize(job, tempDir)
	if err != nil {
		w.fail(job, log, nil, err)
		<-enrichDone
		return err
	}

	audit := w.openAuditLog(job, args, log)

	runErr := w.runner.Run(ctx, args, func(percent float64, line string) {
		if percent >= 0 {
			_ = w.store.SetJobProgress(job.ID, percent)
		}
		w.notifier.Progress(job.ID, job.Title, percent, line)
		audit.appendLine(line)
	})

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			// A stop request, not an error: record the state and go quiet.
			job.Status = domain.StatusCancelled
			_ = w.store.SetJobStatus(job.ID, domain.StatusCancelled)
			<-enrichDone
			log.Info("Download cancelled")
			return ErrCancelled
		}
		w.fail(job, log, audit, runErr)
		<-enrichDone
		return runErr
	}

	w.finalize(ctx, job, tempDir, enrichDone, log)
	return nil
}

type enrichOutcome struct {
	quickDownload bool
	enriched      *domain.DownloadJob
}

// startEnrichment launches the metadata backfill as a joinable task. It works
// on a clone so the download never races the fetch; the enriched copy is
// merged back at finalize time. The returned channel always yields exactly
// one value.
func (w *Worker) startEnrichment(ctx context.Context, job *domain.DownloadJob, log *logger.Logger) <-chan enrichOutcome {
	done := make(chan enrichOutcome, 1)
	clone := job.Clone()
	go func() {
		done <- enrichOutcome{
			quickDownload: w.enrich(ctx, clone, log),
			enriched:      clone,
		}
	}()
	return done
}

// enrich fetches missing title/author/thumbnail from the source and persists
// the update. It reports whether this looks like the first-ever resolution of
// the source (the results cache is empty), which later decides whether to
// backfill cached result entries. Best-effort throughout.
func (w *Worker) enrich(ctx context.Context, job *domain.DownloadJob, log *logger.Logger) bool {
	if job.Title != "" && job.Author != "" && job.Thumbnail != "" {
		return false
	}

	info, err := w.info.FetchMissingInfo(ctx, job.URL)
	if err != nil {
		log.Warn("Failed to fetch missing info", "error", err)
		return false
	}

	if job.Title == "" {
		job.Title = info.Title
	}
	if job.Author == "" {
		job.Author = info.Author
	}
	if job.Thumbnail == "" {
		job.Thumbnail = info.Thumbnail
	}
	job.Duration = info.Duration
	job.Website = info.Website

	count, err := w.store.CountResults()
	quick := err == nil && count == 0

	// Descriptive columns only; the download owns status and progress.
	if err := w.store.UpdateJobMetadata(job); err != nil {
		log.Warn("Failed to persist enriched job", "error", err)
	}
	return quick
}

func (w *Worker) finalize(ctx context.Context, job *domain.DownloadJob, tempDir string, enrichDone <-chan enrichOutcome, log *logger.Logger) {
	w.notifier.Progress(job.ID, job.Title, 100, "Moving file to "+job.OutputDir)

	finalPaths, err := storage.MoveContents(tempDir, job.OutputDir, w.cfg.KeepCache, func(percent int) {
		w.notifier.Progress(job.ID, job.Title, float64(percent), "Moving file to "+job.OutputDir)
	})
	if err != nil || len(finalPaths) == 0 {
		// The download itself succeeded; a failed move is reported but does
		// not fail the job.
		finalPaths = []string{constants.UnknownFilePath}
		if err != nil {
			log.Warn("Failed to move downloaded files", "error", err)
			w.notifier.Warning(fmt.Sprintf("could not move files for %q: %v", job.Title, err))
		}
	}

	outcome := <-enrichDone
	if e := outcome.enriched; e != nil {
		job.Title, job.Author, job.Thumbnail = e.Title, e.Author, e.Thumbnail
		job.Duration, job.Website = e.Duration, e.Website
	}
	// Second pass covers fields that only became available after the
	// download, like the real duration.
	w.enrich(ctx, job, log)

	w.embedThumbnails(ctx, job, finalPaths, log)

	if !w.cfg.Incognito {
		w.recordHistory(job, finalPaths[0], log)
	}

	notified := finalPaths
	if finalPaths[0] == constants.UnknownFilePath {
		notified = nil
	}
	w.notifier.Completed(job.ID, job.Title, notified)

	if outcome.quickDownload {
		w.backfillResults(ctx, job, log)
	}

	if err := w.store.DeleteJob(job.ID); err != nil {
		log.Warn("Failed to delete completed job", "error", err)
	}
	log.Info("Download completed", "paths", finalPaths)
}

// recordHistory appends the finished download to history, using the first
// final path as canonical. Missing descriptive fields are backfilled from the
// produced file's tags when possible.
func (w *Worker) recordHistory(job *domain.DownloadJob, finalPath string, log *logger.Logger) {
	entry := &domain.HistoryEntry{
		URL:          job.URL,
		Title:        job.Title,
		Author:       job.Author,
		Duration:     job.Duration,
		Thumbnail:    job.Thumbnail,
		Type:         job.Type,
		DownloadedAt: time.Now().Unix(),
		Path:         finalPath,
		Website:      job.Website,
		Format:       job.Format.Clone(),
		JobID:        job.ID,
	}

	if finalPath != constants.UnknownFilePath {
		if stat, err := os.Stat(finalPath); err == nil {
			entry.Format.FileSizeBytes = stat.Size()
		}
		if job.Type == domain.TypeAudio && (entry.Title == "" || entry.Author == "") {
			if tags, err := tagging.Probe(finalPath); err == nil {
				if entry.Title == "" {
					entry.Title = tags.Title
				}
				if entry.Author == "" {
					entry.Author = tags.Artist
				}
			}
		}
	}

	if err := w.store.InsertHistory(entry); err != nil {
		log.Warn("Failed to record history", "error", err)
	}
}

// embedThumbnails patches cover art into flac output. The tool embeds
// thumbnails itself for most containers during post-processing, but not for
// flac; when the job asked for embedded artwork the gap is closed here.
// Best-effort.
func (w *Worker) embedThumbnails(ctx context.Context, job *domain.DownloadJob, paths []string, log *logger.Logger) {
	if job.Type != domain.TypeAudio || !job.AudioPrefs.EmbedThumbnail || job.Thumbnail == "" {
		return
	}

	var targets []string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".flac") {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return
	}

	jpeg, err := fetchThumbnail(ctx, job.Thumbnail)
	if err != nil {
		log.Warn("Failed to fetch thumbnail for embedding", "error", err)
		return
	}
	for _, p := range targets {
		if err := tagging.EmbedThumbnail(p, jpeg); err != nil {
			log.Warn("Failed to embed thumbnail", "path", p, "error", err)
		}
	}
}

var thumbnailClient = &http.Client{Timeout: constants.ThumbnailFetchTimeout}

func fetchThumbnail(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := thumbnailClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "jpeg") && !strings.Contains(ct, "jpg") {
		return nil, fmt.Errorf("thumbnail is not jpeg: %s", ct)
	}
	return io.ReadAll(resp.Body)
}

// backfillResults materializes cached result entries for a quick download,
// so the source shows up in future lookups. Best-effort.
func (w *Worker) backfillResults(ctx context.Context, job *domain.DownloadJob, log *logger.Logger) {
	w.notifier.Progress(job.ID, job.Title, 100, "Creating result entries")
	items, err := w.info.FetchFullResult(ctx, job.URL)
	if err != nil {
		log.Warn("Failed to backfill results", "error", err)
		return
	}
	for _, item := range items {
		if err := w.store.InsertResult(item); err != nil {
			log.Warn("Failed to cache result", "error", err)
		}
	}
}

func (w *Worker) fail(job *domain.DownloadJob, log *logger.Logger, audit *auditLog, cause error) {
	job.Status = domain.StatusError
	if err := w.store.SetJobStatus(job.ID, domain.StatusError); err != nil {
		log.Warn("Failed to persist error status", "error", err)
	}
	audit.appendLine(cause.Error())

	_ = os.RemoveAll(w.tempDir(job.ID))
	w.notifier.Errored(job.ID, job.Title, cause.Error())
	log.Error("Download failed", "error", cause)
}

func (w *Worker) tempDir(jobID int64) string {
	return filepath.Join(w.cfg.WorkDir, constants.TempDirName, strconv.FormatInt(jobID, 10))
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear temp dir: %w", err)
	}
	return os.MkdirAll(dir, constants.DirPermissions)
}
