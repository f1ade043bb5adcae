package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mhalvorsen/fetchd/internal/domain"
)

const jobColumns = `id, url, title, author, thumbnail, duration, type, format,
	container, download_sections, all_formats, output_dir, website,
	playlist_title, audio_prefs, video_prefs, filename_template,
	save_thumbnail, status, progress, scheduled_start, created_at, updated_at`

// InsertJob persists a new job and overwrites job.ID with the generated row id.
func (db *DB) InsertJob(job *domain.DownloadJob) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	res, err := db.NamedExec(`INSERT INTO jobs
		(url, title, author, thumbnail, duration, type, format, container,
		 download_sections, all_formats, output_dir, website, playlist_title,
		 audio_prefs, video_prefs, filename_template, save_thumbnail, status,
		 progress, scheduled_start, created_at, updated_at)
		VALUES
		(:url, :title, :author, :thumbnail, :duration, :type, :format, :container,
		 :download_sections, :all_formats, :output_dir, :website, :playlist_title,
		 :audio_prefs, :video_prefs, :filename_template, :save_thumbnail, :status,
		 :progress, :scheduled_start, :created_at, :updated_at)`, job)
	if err != nil {
		return err
	}
	job.ID, err = res.LastInsertId()
	return err
}

// UpdateJob writes every non-identity column of an already persisted job.
func (db *DB) UpdateJob(job *domain.DownloadJob) error {
	job.UpdatedAt = time.Now()

	res, err := db.NamedExec(`UPDATE jobs SET
		url = :url, title = :title, author = :author, thumbnail = :thumbnail,
		duration = :duration, type = :type, format = :format,
		container = :container, download_sections = :download_sections,
		all_formats = :all_formats, output_dir = :output_dir,
		website = :website, playlist_title = :playlist_title,
		audio_prefs = :audio_prefs, video_prefs = :video_prefs,
		filename_template = :filename_template,
		save_thumbnail = :save_thumbnail, status = :status,
		progress = :progress, scheduled_start = :scheduled_start,
		updated_at = :updated_at
		WHERE id = :id`, job)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateJobMetadata writes only the descriptive columns of a job. Status and
// progress are owned by the lifecycle; a concurrent metadata backfill must not
// be able to overwrite them.
func (db *DB) UpdateJobMetadata(job *domain.DownloadJob) error {
	job.UpdatedAt = time.Now()

	res, err := db.NamedExec(`UPDATE jobs SET
		title = :title, author = :author, thumbnail = :thumbnail,
		duration = :duration, website = :website, updated_at = :updated_at
		WHERE id = :id`, job)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetJob returns (nil, nil) when no such row exists.
func (db *DB) GetJob(id int64) (*domain.DownloadJob, error) {
	job := &domain.DownloadJob{}
	err := db.Get(job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) DeleteJob(id int64) error {
	_, err := db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	return err
}

func (db *DB) ListJobs() ([]*domain.DownloadJob, error) {
	var jobs []*domain.DownloadJob
	err := db.Select(&jobs, `SELECT `+jobColumns+` FROM jobs ORDER BY id ASC`)
	return jobs, err
}

// ListJobsByStatus returns jobs whose status is in the given subset, oldest
// first.
func (db *DB) ListJobsByStatus(statuses ...domain.Status) ([]*domain.DownloadJob, error) {
	if len(statuses) == 0 {
		return nil, fmt.Errorf("at least one status required")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}

	var jobs []*domain.DownloadJob
	err := db.Select(&jobs, `SELECT `+jobColumns+` FROM jobs
		WHERE status IN (`+placeholders+`) ORDER BY id ASC`, args...)
	return jobs, err
}

// ActiveAndQueuedJobs is the working set the enqueue duplicate check runs
// against.
func (db *DB) ActiveAndQueuedJobs() ([]*domain.DownloadJob, error) {
	return db.ListJobsByStatus(domain.StatusActive, domain.StatusQueued)
}

func (db *DB) SetJobStatus(id int64, status domain.Status) error {
	_, err := db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	return err
}

func (db *DB) SetJobProgress(id int64, progress float64) error {
	_, err := db.Exec(`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, time.Now(), id)
	return err
}

// LastJobID returns the highest assigned job id, 0 when the table is empty.
func (db *DB) LastJobID() (int64, error) {
	var id sql.NullInt64
	err := db.Get(&id, `SELECT MAX(id) FROM jobs`)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (db *DB) CountJobsByStatus(status domain.Status) (int, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM jobs WHERE status = ?`, status)
	return count, err
}

// DeleteTerminalJobsForURL removes cancelled/errored rows for the same
// logical download, used to clean up superseded retries after a requeue.
func (db *DB) DeleteTerminalJobsForURL(url string, jobType domain.DownloadType, exceptID int64) error {
	_, err := db.Exec(`DELETE FROM jobs
		WHERE url = ? AND type = ? AND id != ? AND status IN (?, ?)`,
		url, jobType, exceptID, domain.StatusCancelled, domain.StatusError)
	return err
}

// DeleteProcessingJobs drops the pre-queue staging set.
func (db *DB) DeleteProcessingJobs() error {
	_, err := db.Exec(`DELETE FROM jobs WHERE status = ?`, domain.StatusProcessing)
	return err
}

// ResetStuckJobs moves jobs left active by an unclean shutdown back to the
// queue so they get scheduled again on boot.
func (db *DB) ResetStuckJobs() error {
	_, err := db.Exec(`UPDATE jobs SET status = ?, progress = 0, updated_at = ? WHERE status = ?`,
		domain.StatusQueued, time.Now(), domain.StatusActive)
	return err
}
