// Package format selects a concrete download format from the candidates a
// source surfaced, falling back through ordered tiers and finally to a
// synthesized sentinel. Resolution never fails: every tier is an ordinary
// query and the last tier always produces a usable Format.
package format

import (
	"strings"

	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
)

// TemplateSource lists the stored command templates backing the command job
// type.
type TemplateSource interface {
	ListCommandTemplates() ([]*domain.CommandTemplate, error)
}

type Resolver struct {
	videoFormatIDs   []string
	defaultContainer string
	templates        TemplateSource
}

func NewResolver(videoFormatIDs []string, defaultContainer string, templates TemplateSource) *Resolver {
	return &Resolver{
		videoFormatIDs:   videoFormatIDs,
		defaultContainer: defaultContainer,
		templates:        templates,
	}
}

// Resolve picks or synthesizes a Format for the given type. preferredID is a
// user-forced format id (may be empty); quality is "best", "worst" or a
// height token like "720p" and only applies to video. The returned Format is
// always a value copy the caller may mutate freely.
func (r *Resolver) Resolve(candidates domain.FormatList, typ domain.DownloadType, preferredID, quality string) domain.Format {
	switch typ {
	case domain.TypeAudio:
		return r.resolveAudio(candidates, preferredID)
	case domain.TypeCommand:
		if f, ok := r.resolveCommand(); ok {
			return f
		}
		// No templates configured: treat as a video download.
		return r.resolveVideo(candidates, preferredID, quality)
	default:
		return r.resolveVideo(candidates, preferredID, quality)
	}
}

func (r *Resolver) resolveAudio(candidates domain.FormatList, preferredID string) domain.Format {
	if preferredID != "" {
		for _, f := range candidates {
			if f.IsAudio() && f.FormatID == preferredID {
				return f.Clone()
			}
		}
	}
	// Last audio entry is the best one by convention.
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].IsAudio() {
			return candidates[i].Clone()
		}
	}
	return domain.Format{
		FormatID: constants.FormatIDBest,
		Note:     "best audio",
	}
}

func (r *Resolver) resolveVideo(candidates domain.FormatList, preferredID, quality string) domain.Format {
	if preferredID != "" {
		for _, f := range candidates {
			if !f.IsAudio() && f.FormatID == preferredID {
				return f.Clone()
			}
		}
	}

	switch quality {
	case constants.FormatIDWorst:
		for _, f := range candidates {
			if !f.IsAudio() {
				return f.Clone()
			}
		}
	case constants.FormatIDBest, "":
		for i := len(candidates) - 1; i >= 0; i-- {
			if !candidates[i].IsAudio() {
				return candidates[i].Clone()
			}
		}
	default:
		if f, ok := lastMatchingHeight(candidates, quality); ok {
			return f
		}
		for i := len(candidates) - 1; i >= 0; i-- {
			if !candidates[i].IsAudio() {
				return candidates[i].Clone()
			}
		}
	}

	return r.defaultVideo()
}

// lastMatchingHeight finds the last candidate whose note mentions the numeric
// part of a height token such as "720p".
func lastMatchingHeight(candidates domain.FormatList, quality string) (domain.Format, bool) {
	height := strings.TrimSuffix(quality, "p")
	if height == "" {
		return domain.Format{}, false
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if strings.Contains(candidates[i].Note, height) {
			return candidates[i].Clone(), true
		}
	}
	return domain.Format{}, false
}

// defaultVideo synthesizes the best-video sentinel from the configured
// format ladder (ascending quality, so the last entry wins).
func (r *Resolver) defaultVideo() domain.Format {
	id := constants.FormatIDBest
	if len(r.videoFormatIDs) > 0 {
		id = r.videoFormatIDs[len(r.videoFormatIDs)-1]
	}
	return domain.Format{
		FormatID:  id,
		Container: r.defaultContainer,
		Note:      id,
	}
}

// resolveCommand wraps the first stored command template into a Format whose
// Note carries the verbatim (single-line) template text and whose id is the
// template title.
func (r *Resolver) resolveCommand() (domain.Format, bool) {
	if r.templates == nil {
		return domain.Format{}, false
	}
	templates, err := r.templates.ListCommandTemplates()
	if err != nil || len(templates) == 0 {
		return domain.Format{}, false
	}
	t := templates[0]
	return domain.Format{
		FormatID: t.Title,
		Note:     flatten(t.Content),
	}, true
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
