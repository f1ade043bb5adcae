// Package ytdlp translates resolved download jobs into yt-dlp invocations and
// runs the tool as a subprocess, streaming its output.
package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
)

// cropFilterArgs is the ffmpeg post-processor argument that squares thumbnails
// before they are embedded.
const cropFilterArgs = `--ppa "ffmpeg: -c:v mjpeg -vf crop=\"'if(gt(ih,iw),iw,ih)':'if(gt(iw,ih),ih,iw)'\""`

// Synthesizer derives the exact yt-dlp argument list for a job. Synthesis is
// deterministic for a fixed (job, config) pair; its only side effect is
// writing the optional crop-filter and command-template config files under
// the job's temp directory.
type Synthesizer struct {
	cfg *config.Config
}

func NewSynthesizer(cfg *config.Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Synthesize returns the full argument vector (tool binary excluded, URL
// included last) for the given job. tempDir must exist and be exclusive to
// this job.
func (s *Synthesizer) Synthesize(job *domain.DownloadJob, tempDir string) ([]string, error) {
	var args []string

	// The output template is adjusted locally; the persisted job keeps the
	// user's own template.
	nameTemplate := job.FileNameTemplate
	if strings.TrimSpace(nameTemplate) == "" {
		nameTemplate = constants.DefaultOutputTemplate
	}

	if job.Type != domain.TypeCommand {
		common, adjusted := s.commonArgs(job, nameTemplate)
		args = append(args, common...)
		nameTemplate = adjusted
	}

	switch job.Type {
	case domain.TypeAudio:
		audio, err := s.audioArgs(job, tempDir, nameTemplate)
		if err != nil {
			return nil, err
		}
		args = append(args, audio...)
	case domain.TypeVideo:
		args = append(args, s.videoArgs(job, tempDir, nameTemplate)...)
	case domain.TypeCommand:
		command, err := s.commandArgs(job, tempDir)
		if err != nil {
			return nil, err
		}
		args = append(args, command...)
	}

	args = append(args, s.globalArgs()...)
	args = append(args, job.URL)
	return args, nil
}

// commonArgs covers every non-command type: thumbnail writing, SponsorBlock,
// metadata sanitization and section selection. It returns the possibly
// suffixed output template alongside the arguments.
func (s *Synthesizer) commonArgs(job *domain.DownloadJob, nameTemplate string) ([]string, string) {
	var args []string

	if job.SaveThumbnail {
		args = append(args, "--write-thumbnail", "--convert-thumbnails", "png")
	}
	if !s.cfg.PreserveModTime {
		args = append(args, "--no-mtime")
	}

	categories := job.AudioPrefs.SponsorBlock
	if job.Type != domain.TypeAudio {
		categories = job.VideoPrefs.SponsorBlock
	}
	if filtered := joinNonBlank(categories); filtered != "" {
		args = append(args, "--sponsorblock-remove", filtered)
	}

	if strings.TrimSpace(job.Title) != "" {
		args = append(args, "--replace-in-metadata", "title", ".*.",
			truncate(job.Title, constants.MaxMetaTitleLen))
	}
	if strings.TrimSpace(job.Author) != "" {
		args = append(args, "--replace-in-metadata", "uploader", ".*.",
			truncate(job.Author, constants.MaxMetaUploaderLen))
	}
	args = append(args, "--replace-in-metadata", "uploader", " - Topic$", "")

	if strings.TrimSpace(job.DownloadSections) != "" {
		sectioned := false
		for _, section := range strings.Split(job.DownloadSections, ";") {
			if strings.TrimSpace(section) == "" {
				continue
			}
			if strings.Contains(section, ":") {
				args = append(args, "--download-sections", "*"+section)
			} else {
				args = append(args, "--download-sections", section)
			}
			sectioned = true
		}
		if sectioned {
			nameTemplate += " %(section_title)s %(autonumber)s"
			args = append(args, "--output-na-placeholder", " ")
		}
	}

	if s.cfg.UseAudioQuality {
		args = append(args, "--audio-quality", fmt.Sprintf("%d", s.cfg.AudioQuality))
	}

	return args, nameTemplate
}

func (s *Synthesizer) audioArgs(job *domain.DownloadJob, tempDir, nameTemplate string) ([]string, error) {
	var args []string

	selector := job.Format.FormatID
	switch selector {
	case "", "0", constants.FormatIDBest:
		selector = ""
	case constants.FormatIDWorst:
		selector = "worstaudio"
	}
	if selector != "" {
		args = append(args, "-f", selector)
	}
	args = append(args, "-x")

	if ext := job.Container; ext != "" && !isDefaultContainer(ext, s.cfg.DefaultContainer) && ext != "webm" {
		args = append(args, "--audio-format", ext)
	}

	args = append(args, "--embed-metadata")

	if job.AudioPrefs.EmbedThumbnail {
		args = append(args, "--embed-thumbnail", "--convert-thumbnails", "jpg")
		if s.cfg.CropThumbnail {
			configPath, err := writeSideConfig(tempDir, cropFilterArgs)
			if err != nil {
				return nil, fmt.Errorf("failed to write crop filter config: %w", err)
			}
			args = append(args,
				"--ppa", "ThumbnailsConvertor:-qmin 1 -q:v 1",
				"--config", configPath)
		}
	}

	args = append(args, "--parse-metadata", "%(release_year,upload_date)s:%(meta_date)s")

	if job.PlaylistTitle != "" {
		args = append(args,
			"--parse-metadata", "%(album,playlist,title)s:%(meta_album)s",
			"--parse-metadata", "%(track_number,playlist_index)d:%(meta_track)s")
	} else {
		args = append(args, "--parse-metadata", "%(album,title)s:%(meta_album)s")
	}

	if job.AudioPrefs.SplitByChapters && strings.TrimSpace(job.DownloadSections) == "" {
		args = append(args, "--split-chapters", "-P", tempDir)
	} else {
		args = append(args, "-o", filepath.Join(tempDir, nameTemplate+".%(ext)s"))
	}

	return args, nil
}

func (s *Synthesizer) videoArgs(job *domain.DownloadJob, tempDir, nameTemplate string) []string {
	var args []string
	prefs := job.VideoPrefs

	if prefs.AddChapters {
		args = append(args, "--sponsorblock-mark", "all", "--embed-chapters")
	}
	if prefs.EmbedSubtitles {
		args = append(args, "--embed-subs", "--sub-langs", prefs.SubtitleLanguages)
	}
	if len(prefs.ExtraAudioFormats) > 0 {
		args = append(args, "--audio-multistreams")
	}

	args = append(args, "-f", s.videoSelector(job))

	if container := job.Container; container != "" && !isDefaultContainer(container, s.cfg.DefaultContainer) {
		args = append(args, "--merge-output-format", strings.ToLower(container))
		if container != "webm" && s.cfg.EmbedVideoThumb {
			args = append(args, "--embed-thumbnail")
		}
	}

	if prefs.WriteSubtitles {
		args = append(args,
			"--write-subs", "--write-auto-subs",
			"--sub-format", "str/ass/best",
			"--convert-subtitles", "srt")
		if !prefs.EmbedSubtitles {
			args = append(args, "--sub-langs", prefs.SubtitleLanguages)
		}
	}

	if prefs.RemoveAudio && job.Format.AudioCodec != "" && job.Format.AudioCodec != "none" {
		args = append(args, "--ppa", "ffmpeg:-an")
	}

	if prefs.SplitByChapters && strings.TrimSpace(job.DownloadSections) == "" {
		args = append(args, "--split-chapters", "-P", tempDir)
	} else {
		args = append(args, "-o", filepath.Join(tempDir, nameTemplate+".%(ext)s"))
	}

	return args
}

// videoSelector builds the -f selector string, mapping sentinel ids and bare
// height tokens to concrete selectors and stitching in extra audio streams.
func (s *Synthesizer) videoSelector(job *domain.DownloadJob) string {
	prefs := job.VideoPrefs

	id := job.Format.FormatID
	if id == "" {
		if prefs.RemoveAudio {
			return "bestvideo"
		}
		return "bestvideo+bestaudio/best"
	}

	switch {
	case id == constants.FormatIDBest:
		id = "bestvideo"
	case id == constants.FormatIDWorst:
		id = "worst"
	case contains(s.cfg.VideoFormatIDs, id):
		id = "bestvideo[height<=" + strings.TrimSuffix(id, "p") + "]"
	}

	if len(prefs.ExtraAudioFormats) > 0 {
		audio := strings.Join(prefs.ExtraAudioFormats, "+")
		return id + "+" + audio + "/best/" + id
	}
	return id + "+bestaudio/best/" + id
}

// commandArgs writes the job's raw template text to a config side file; all
// behavior for command jobs comes from that user-authored template.
func (s *Synthesizer) commandArgs(job *domain.DownloadJob, tempDir string) ([]string, error) {
	configPath, err := writeSideConfig(tempDir, job.Format.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to write command template config: %w", err)
	}
	return []string{"--config-locations", configPath, "-P", tempDir}, nil
}

func (s *Synthesizer) globalArgs() []string {
	var args []string

	if s.cfg.UseAria2 {
		args = append(args,
			"--downloader", "aria2c",
			"--external-downloader-args", `aria2c:"--summary-interval=1"`)
	} else if s.cfg.ConcurrentFragments > 1 {
		args = append(args, "-N", fmt.Sprintf("%d", s.cfg.ConcurrentFragments))
	}

	if s.cfg.RateLimit != "" {
		args = append(args, "-r", s.cfg.RateLimit)
	}
	if s.cfg.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}
	if s.cfg.CookiesPath != "" {
		if _, err := os.Stat(s.cfg.CookiesPath); err == nil {
			args = append(args, "--cookies", s.cfg.CookiesPath)
		}
	}
	if s.cfg.Proxy != "" {
		args = append(args, "--proxy", s.cfg.Proxy)
	}
	if s.cfg.KeepCache {
		args = append(args, "--part", "--keep-fragments")
	}

	return args
}

func writeSideConfig(tempDir, content string) (string, error) {
	path := filepath.Join(tempDir, "config-"+uuid.NewString()+".txt")
	if err := os.WriteFile(path, []byte(content), constants.FilePermissions); err != nil {
		return "", err
	}
	return path, nil
}

func isDefaultContainer(container, localizedDefault string) bool {
	return container == "Default" || container == localizedDefault
}

func joinNonBlank(values []string) string {
	var kept []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
