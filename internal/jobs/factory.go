// Package jobs turns resolved media references into queue entities and owns
// their state transitions up to the point a worker takes over.
package jobs

import (
	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/format"
)

// Factory builds DownloadJob entities from search results, history entries or
// bare URLs, reading the current user configuration for defaults.
type Factory struct {
	cfg      *config.Config
	resolver *format.Resolver
}

func NewFactory(cfg *config.Config, resolver *format.Resolver) *Factory {
	return &Factory{cfg: cfg, resolver: resolver}
}

// FromResult stages a new job from a resolved search result. The job starts
// in Processing: it is visible to the user for adjustment but never scheduled
// until it is explicitly enqueued.
func (f *Factory) FromResult(result *domain.ResultItem, typ domain.DownloadType) *domain.DownloadJob {
	chosen := f.resolver.Resolve(result.Formats, typ, f.cfg.PreferredFormatID, f.cfg.PreferredVideoQuality)

	return &domain.DownloadJob{
		URL:              result.URL,
		Title:            result.Title,
		Author:           result.Author,
		Thumbnail:        result.Thumbnail,
		Duration:         result.Duration,
		Type:             typ,
		Format:           chosen,
		Container:        chosen.Container,
		AllFormats:       result.Formats.Clone(),
		OutputDir:        f.cfg.OutputDir(string(typ)),
		Website:          result.Website,
		PlaylistTitle:    result.PlaylistTitle,
		AudioPrefs:       f.audioPrefs(),
		VideoPrefs:       f.videoPrefs(),
		FileNameTemplate: f.nameTemplate(typ),
		SaveThumbnail:    f.cfg.WriteThumbnail,
		Status:           domain.StatusProcessing,
	}
}

// FromHistory rebuilds a job from a past download for re-downloading. It
// enters the lifecycle directly at Queued.
func (f *Factory) FromHistory(entry *domain.HistoryEntry) *domain.DownloadJob {
	return &domain.DownloadJob{
		URL:              entry.URL,
		Title:            entry.Title,
		Author:           entry.Author,
		Thumbnail:        entry.Thumbnail,
		Duration:         entry.Duration,
		Type:             entry.Type,
		Format:           entry.Format.Clone(),
		Container:        entry.Format.Container,
		OutputDir:        f.cfg.OutputDir(string(entry.Type)),
		Website:          entry.Website,
		AudioPrefs:       f.audioPrefs(),
		VideoPrefs:       f.videoPrefs(),
		FileNameTemplate: f.nameTemplate(entry.Type),
		SaveThumbnail:    f.cfg.WriteThumbnail,
		Status:           domain.StatusQueued,
	}
}

// FromURL stages a quick download: a bare URL with no resolved metadata. The
// execution wrapper enriches the missing fields later.
func (f *Factory) FromURL(url string, typ domain.DownloadType) *domain.DownloadJob {
	return f.FromResult(&domain.ResultItem{URL: url}, typ)
}

// SwitchType re-resolves each job's chosen format against its retained
// candidate list and overwrites the type in place. This is the only in-place
// mutation path outside the state machine.
func (f *Factory) SwitchType(list []*domain.DownloadJob, typ domain.DownloadType) {
	for _, job := range list {
		chosen := f.resolver.Resolve(job.AllFormats, typ, f.cfg.PreferredFormatID, f.cfg.PreferredVideoQuality)
		job.Type = typ
		job.Format = chosen
		job.Container = chosen.Container
		job.OutputDir = f.cfg.OutputDir(string(typ))
		job.FileNameTemplate = f.nameTemplate(typ)
	}
}

func (f *Factory) audioPrefs() domain.AudioPreferences {
	return domain.AudioPreferences{
		EmbedThumbnail: f.cfg.WriteThumbnail,
		SponsorBlock:   append(domain.StringSlice(nil), f.cfg.SponsorBlockAudio...),
	}
}

func (f *Factory) videoPrefs() domain.VideoPreferences {
	return domain.VideoPreferences{
		EmbedSubtitles:    f.cfg.EmbedSubtitles,
		AddChapters:       f.cfg.AddChapters,
		SubtitleLanguages: f.cfg.SubtitleLanguages,
		SponsorBlock:      append(domain.StringSlice(nil), f.cfg.SponsorBlockVideo...),
	}
}

func (f *Factory) nameTemplate(typ domain.DownloadType) string {
	if typ == domain.TypeAudio {
		return f.cfg.AudioNameTemplate
	}
	return f.cfg.VideoNameTemplate
}
