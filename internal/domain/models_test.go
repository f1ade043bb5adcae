package domain

import (
	"testing"
)

func TestParseDownloadType(t *testing.T) {
	for _, s := range []string{"audio", "video", "command"} {
		typ, err := ParseDownloadType(s)
		if err != nil {
			t.Fatalf("ParseDownloadType(%q) failed: %v", s, err)
		}
		if string(typ) != s {
			t.Errorf("Expected %q, got %q", s, typ)
		}
	}

	// Unknown values are a hard error, never a silent default
	for _, s := range []string{"", "playlist", "terminal", "audio video"} {
		if _, err := ParseDownloadType(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"processing", "queued", "active", "cancelled", "error"} {
		status, err := ParseStatus(s)
		if err != nil {
			t.Fatalf("ParseStatus(%q) failed: %v", s, err)
		}
		if string(status) != s {
			t.Errorf("Expected %q, got %q", s, status)
		}
	}

	if _, err := ParseStatus("done"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusProcessing: false,
		StatusQueued:     false,
		StatusActive:     false,
		StatusCancelled:  true,
		StatusError:      true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestFormatIsAudio(t *testing.T) {
	cases := []struct {
		note string
		want bool
	}{
		{"audio only", true},
		{"Audio", true},
		{"1080p", false},
		{"", false},
	}
	for _, c := range cases {
		f := Format{Note: c.note}
		if got := f.IsAudio(); got != c.want {
			t.Errorf("IsAudio(%q) = %v, want %v", c.note, got, c.want)
		}
	}
}

func sampleJob() *DownloadJob {
	return &DownloadJob{
		ID:     7,
		URL:    "https://example.com/watch?v=abc",
		Title:  "A Title",
		Author: "An Author",
		Type:   TypeVideo,
		Format: Format{FormatID: "137", Note: "1080p"},
		AllFormats: FormatList{
			{FormatID: "140", Note: "audio only"},
			{FormatID: "137", Note: "1080p"},
		},
		VideoPrefs: VideoPreferences{
			SponsorBlock:      StringSlice{"sponsor"},
			SubtitleLanguages: "en.*",
		},
		Status:   StatusQueued,
		Progress: 42,
	}
}

func TestDownloadJobClone(t *testing.T) {
	job := sampleJob()
	clone := job.Clone()

	if clone == job {
		t.Fatal("Clone returned the same pointer")
	}
	if clone.URL != job.URL || clone.Format.FormatID != job.Format.FormatID {
		t.Error("Clone lost field values")
	}

	// Mutating the clone's slices must not touch the original
	clone.AllFormats[0].FormatID = "mutated"
	clone.VideoPrefs.SponsorBlock[0] = "mutated"
	if job.AllFormats[0].FormatID == "mutated" {
		t.Error("Clone shares the format list with the original")
	}
	if job.VideoPrefs.SponsorBlock[0] == "mutated" {
		t.Error("Clone shares preference slices with the original")
	}
}

func TestSameRequest(t *testing.T) {
	a := sampleJob()
	b := sampleJob()

	// Identity and execution state are excluded from the comparison
	b.ID = 99
	b.Status = StatusError
	b.Progress = 0
	if !a.SameRequest(b) {
		t.Error("Expected jobs differing only in identity fields to match")
	}

	b = sampleJob()
	b.Type = TypeAudio
	if a.SameRequest(b) {
		t.Error("Expected different types not to match")
	}

	// A different scheduled start is a new request, not a duplicate
	b = sampleJob()
	b.ScheduledStart = 123456
	if a.SameRequest(b) {
		t.Error("Expected different scheduled starts not to match")
	}

	b = sampleJob()
	b.Format.FormatID = "best"
	if a.SameRequest(b) {
		t.Error("Expected different chosen formats not to match")
	}

	b = sampleJob()
	b.DownloadSections = "10:20"
	if a.SameRequest(b) {
		t.Error("Expected different sections not to match")
	}

	// The comparison must not mutate either side
	if a.ID != 7 || a.Status != StatusQueued || a.Progress != 42 {
		t.Error("SameRequest mutated its receiver")
	}
}
