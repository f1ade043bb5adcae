package format

import (
	"errors"
	"testing"

	"github.com/mhalvorsen/fetchd/internal/domain"
)

var testLadder = []string{"144p", "240p", "360p", "480p", "720p", "1080p", "1440p", "2160p"}

// Candidate lists are ordered worst-to-best within each kind, the way the
// external tool reports them.
func candidates() domain.FormatList {
	return domain.FormatList{
		{FormatID: "249", Note: "audio only (low)"},
		{FormatID: "251", Note: "audio only (high)"},
		{FormatID: "134", Note: "360p"},
		{FormatID: "136", Note: "720p"},
		{FormatID: "137", Note: "1080p"},
	}
}

type fakeTemplates struct {
	list []*domain.CommandTemplate
	err  error
}

func (f *fakeTemplates) ListCommandTemplates() ([]*domain.CommandTemplate, error) {
	return f.list, f.err
}

func newTestResolver(templates TemplateSource) *Resolver {
	return NewResolver(testLadder, "Default", templates)
}

func TestResolveAudioPreferred(t *testing.T) {
	r := newTestResolver(nil)

	f := r.Resolve(candidates(), domain.TypeAudio, "249", "")
	if f.FormatID != "249" {
		t.Errorf("Expected preferred id 249, got %s", f.FormatID)
	}

	// A preferred id pointing at a video entry must not leak into audio
	f = r.Resolve(candidates(), domain.TypeAudio, "137", "")
	if f.FormatID != "251" {
		t.Errorf("Expected last audio entry 251, got %s", f.FormatID)
	}
	if !f.IsAudio() {
		t.Error("Audio resolution returned a non-audio format")
	}
}

func TestResolveAudioFallsBackToLastAudio(t *testing.T) {
	r := newTestResolver(nil)

	f := r.Resolve(candidates(), domain.TypeAudio, "", "")
	if f.FormatID != "251" {
		t.Errorf("Expected 251, got %s", f.FormatID)
	}
}

func TestResolveAudioSentinel(t *testing.T) {
	r := newTestResolver(nil)

	// No audio candidates at all: synthesized sentinel, never a panic
	f := r.Resolve(domain.FormatList{{FormatID: "137", Note: "1080p"}}, domain.TypeAudio, "", "")
	if f.FormatID != "best" {
		t.Errorf("Expected sentinel best, got %s", f.FormatID)
	}

	f = r.Resolve(nil, domain.TypeAudio, "", "")
	if f.FormatID != "best" {
		t.Errorf("Expected sentinel for empty list, got %s", f.FormatID)
	}
}

func TestResolveVideoQualityTiers(t *testing.T) {
	r := newTestResolver(nil)

	cases := []struct {
		quality string
		want    string
	}{
		{"worst", "134"},
		{"best", "137"},
		{"", "137"},
		{"720p", "136"},
		{"360p", "134"},
		// Unknown height falls back to the best video entry
		{"4320p", "137"},
	}
	for _, c := range cases {
		f := r.Resolve(candidates(), domain.TypeVideo, "", c.quality)
		if f.FormatID != c.want {
			t.Errorf("quality %q: expected %s, got %s", c.quality, c.want, f.FormatID)
		}
		if f.IsAudio() {
			t.Errorf("quality %q: video resolution returned an audio format", c.quality)
		}
	}
}

func TestResolveVideoPreferredID(t *testing.T) {
	r := newTestResolver(nil)

	f := r.Resolve(candidates(), domain.TypeVideo, "136", "best")
	if f.FormatID != "136" {
		t.Errorf("Expected preferred id 136, got %s", f.FormatID)
	}

	// Preferred id pointing at an audio entry is ignored for video
	f = r.Resolve(candidates(), domain.TypeVideo, "251", "best")
	if f.FormatID != "137" {
		t.Errorf("Expected 137, got %s", f.FormatID)
	}
}

func TestResolveVideoDefaultSentinel(t *testing.T) {
	r := newTestResolver(nil)

	f := r.Resolve(nil, domain.TypeVideo, "", "best")
	if f.FormatID != "2160p" {
		t.Errorf("Expected ladder top 2160p, got %s", f.FormatID)
	}
	if f.Container != "Default" {
		t.Errorf("Expected default container, got %s", f.Container)
	}
}

func TestResolveCommandUsesFirstTemplate(t *testing.T) {
	r := newTestResolver(&fakeTemplates{list: []*domain.CommandTemplate{
		{ID: 1, Title: "archive", Content: "--write-info-json\n  --no-playlist "},
		{ID: 2, Title: "other", Content: "-x"},
	}})

	f := r.Resolve(candidates(), domain.TypeCommand, "", "")
	if f.FormatID != "archive" {
		t.Errorf("Expected template title as id, got %s", f.FormatID)
	}
	if f.Note != "--write-info-json --no-playlist" {
		t.Errorf("Expected flattened template content, got %q", f.Note)
	}
}

func TestResolveCommandFallsBackToVideo(t *testing.T) {
	// No templates stored and a listing error both degrade to video
	for _, src := range []TemplateSource{
		&fakeTemplates{},
		&fakeTemplates{err: errors.New("db closed")},
		nil,
	} {
		r := newTestResolver(src)
		f := r.Resolve(candidates(), domain.TypeCommand, "", "best")
		if f.FormatID != "137" {
			t.Errorf("Expected video fallback 137, got %s", f.FormatID)
		}
	}
}

func TestResolveReturnsCopies(t *testing.T) {
	r := newTestResolver(nil)
	list := candidates()

	f := r.Resolve(list, domain.TypeVideo, "", "best")
	f.Container = "mutated"
	if list[4].Container == "mutated" {
		t.Error("Resolve returned a shared value")
	}
}
