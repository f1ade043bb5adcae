package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DownloadType is the closed set of job kinds. Anything else is a parse
// error, never a silent fallback.
type DownloadType string

const (
	TypeAudio   DownloadType = "audio"
	TypeVideo   DownloadType = "video"
	TypeCommand DownloadType = "command"
)

func ParseDownloadType(s string) (DownloadType, error) {
	switch DownloadType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeAudio:
		return TypeAudio, nil
	case TypeVideo:
		return TypeVideo, nil
	case TypeCommand:
		return TypeCommand, nil
	default:
		return "", fmt.Errorf("invalid download type %q", s)
	}
}

// Status is the persisted lifecycle state of a job. Successful completion is
// represented by row deletion, so there is no stored "completed" value.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusQueued     Status = "queued"
	StatusActive     Status = "active"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusQueued:
		return StatusQueued, nil
	case StatusActive:
		return StatusActive, nil
	case StatusCancelled:
		return StatusCancelled, nil
	case StatusError:
		return StatusError, nil
	default:
		return "", fmt.Errorf("invalid job status %q", s)
	}
}

// Terminal reports whether the status is a resting state the user can
// requeue from.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusError
}

// Format describes one candidate or chosen encoding of a source. For command
// jobs Note is repurposed to carry the raw template text.
type Format struct {
	FormatID      string `json:"format_id"`
	Container     string `json:"container"`
	Note          string `json:"note"`
	AudioCodec    string `json:"audio_codec"`
	FileSizeBytes int64  `json:"file_size"`
}

// IsAudio reports whether this candidate is audio-only. The note text is the
// sole signal; candidate lists carry no explicit type tag.
func (f Format) IsAudio() bool {
	return strings.Contains(strings.ToLower(f.Note), "audio")
}

// Clone returns a value copy. Format has no reference fields today, but
// callers mutate per-job copies and must never share with cached defaults.
func (f Format) Clone() Format {
	return f
}

func (f Format) Value() (driver.Value, error) {
	return jsonValue(f)
}

func (f *Format) Scan(value interface{}) error {
	return jsonScan(value, f)
}

// AudioPreferences carries the audio post-processing toggles for one job.
type AudioPreferences struct {
	EmbedThumbnail  bool        `json:"embed_thumbnail"`
	SplitByChapters bool        `json:"split_by_chapters"`
	SponsorBlock    StringSlice `json:"sponsorblock"`
}

func (p AudioPreferences) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *AudioPreferences) Scan(value interface{}) error {
	return jsonScan(value, p)
}

func (p AudioPreferences) Clone() AudioPreferences {
	out := p
	out.SponsorBlock = append(StringSlice(nil), p.SponsorBlock...)
	return out
}

// VideoPreferences carries the video post-processing toggles for one job.
type VideoPreferences struct {
	EmbedSubtitles    bool        `json:"embed_subtitles"`
	AddChapters       bool        `json:"add_chapters"`
	SplitByChapters   bool        `json:"split_by_chapters"`
	WriteSubtitles    bool        `json:"write_subtitles"`
	RemoveAudio       bool        `json:"remove_audio"`
	SubtitleLanguages string      `json:"subtitle_languages"`
	SponsorBlock      StringSlice `json:"sponsorblock"`
	ExtraAudioFormats StringSlice `json:"extra_audio_formats"`
}

func (p VideoPreferences) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *VideoPreferences) Scan(value interface{}) error {
	return jsonScan(value, p)
}

func (p VideoPreferences) Clone() VideoPreferences {
	out := p
	out.SponsorBlock = append(StringSlice(nil), p.SponsorBlock...)
	out.ExtraAudioFormats = append(StringSlice(nil), p.ExtraAudioFormats...)
	return out
}

// DownloadJob is the central queue entity. ID 0 means the job has not been
// persisted yet.
type DownloadJob struct {
	ID               int64            `json:"id" db:"id"`
	URL              string           `json:"url" db:"url"`
	Title            string           `json:"title" db:"title"`
	Author           string           `json:"author" db:"author"`
	Thumbnail        string           `json:"thumbnail" db:"thumbnail"`
	Duration         string           `json:"duration" db:"duration"`
	Type             DownloadType     `json:"type" db:"type"`
	Format           Format           `json:"format" db:"format"`
	Container        string           `json:"container" db:"container"`
	DownloadSections string           `json:"download_sections" db:"download_sections"`
	AllFormats       FormatList       `json:"all_formats" db:"all_formats"`
	OutputDir        string           `json:"output_dir" db:"output_dir"`
	Website          string           `json:"website" db:"website"`
	PlaylistTitle    string           `json:"playlist_title" db:"playlist_title"`
	AudioPrefs       AudioPreferences `json:"audio_prefs" db:"audio_prefs"`
	VideoPrefs       VideoPreferences `json:"video_prefs" db:"video_prefs"`
	FileNameTemplate string           `json:"filename_template" db:"filename_template"`
	SaveThumbnail    bool             `json:"save_thumbnail" db:"save_thumbnail"`
	Status           Status           `json:"status" db:"status"`
	Progress         float64          `json:"progress" db:"progress"`
	ScheduledStart   int64            `json:"scheduled_start" db:"scheduled_start"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Clone returns an explicit deep copy, so callers can mutate per-job state
// without sharing slices with the original.
func (j *DownloadJob) Clone() *DownloadJob {
	out := *j
	out.Format = j.Format.Clone()
	out.AllFormats = j.AllFormats.Clone()
	out.AudioPrefs = j.AudioPrefs.Clone()
	out.VideoPrefs = j.VideoPrefs.Clone()
	return &out
}

// SameRequest reports field equality excluding identity and lifecycle fields
// (ID, Status, Progress, timestamps). ScheduledStart participates: the same
// download at a different start time is a new request, not a duplicate. Two
// jobs that are SameRequest describe the same logical download.
func (j *DownloadJob) SameRequest(other *DownloadJob) bool {
	if other == nil {
		return false
	}
	a := j.Clone()
	b := other.Clone()
	for _, p := range []*DownloadJob{a, b} {
		p.ID = 0
		p.Status = ""
		p.Progress = 0
		p.CreatedAt = time.Time{}
		p.UpdatedAt = time.Time{}
	}
	return jobFingerprint(a) == jobFingerprint(b)
}

func jobFingerprint(j *DownloadJob) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%v|%s|%s|%v|%s|%s|%s|%v|%v|%s|%t|%d",
		j.URL, j.Title, j.Author, j.Duration, j.Type, j.Format, j.Container,
		j.DownloadSections, j.AllFormats, j.OutputDir, j.Website,
		j.PlaylistTitle, j.AudioPrefs, j.VideoPrefs, j.FileNameTemplate,
		j.SaveThumbnail, j.ScheduledStart)
}

// HistoryEntry is one finished download as shown to the user afterwards.
type HistoryEntry struct {
	ID           int64        `json:"id" db:"id"`
	URL          string       `json:"url" db:"url"`
	Title        string       `json:"title" db:"title"`
	Author       string       `json:"author" db:"author"`
	Duration     string       `json:"duration" db:"duration"`
	Thumbnail    string       `json:"thumbnail" db:"thumbnail"`
	Type         DownloadType `json:"type" db:"type"`
	DownloadedAt int64        `json:"downloaded_at" db:"downloaded_at"`
	Path         string       `json:"path" db:"path"`
	Website      string       `json:"website" db:"website"`
	Format       Format       `json:"format" db:"format"`
	JobID        int64        `json:"job_id" db:"job_id"`
}

// ResultItem is one resolved media reference from the source, cached so a
// later queue action does not need to hit the network again.
type ResultItem struct {
	ID            int64      `json:"id" db:"id"`
	URL           string     `json:"url" db:"url"`
	Title         string     `json:"title" db:"title"`
	Author        string     `json:"author" db:"author"`
	Duration      string     `json:"duration" db:"duration"`
	Thumbnail     string     `json:"thumbnail" db:"thumbnail"`
	Website       string     `json:"website" db:"website"`
	PlaylistTitle string     `json:"playlist_title" db:"playlist_title"`
	Formats       FormatList `json:"formats" db:"formats"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// MediaInfo is the best-effort descriptive metadata for one URL. Any field
// may be empty.
type MediaInfo struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Duration  string `json:"duration"`
	Website   string `json:"website"`
	Thumbnail string `json:"thumbnail"`
}

// CommandTemplate is a stored, user-authored yt-dlp argument template backing
// the command job type.
type CommandTemplate struct {
	ID      int64  `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Content string `json:"content" db:"content"`
}
