package tagging

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	flac "github.com/go-flac/go-flac"
)

func writeTaggedMP3(t *testing.T, title, artist string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("\xff\xfb\x90\x00fake audio frame"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to open tags: %v", err)
	}
	tag.SetTitle(title)
	tag.SetArtist(artist)
	if err := tag.Save(); err != nil {
		t.Fatalf("Failed to save tags: %v", err)
	}
	tag.Close()
	return path
}

func TestProbeMP3(t *testing.T) {
	path := writeTaggedMP3(t, "Some Song", "Some Artist")

	tags, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if tags.Title != "Some Song" || tags.Artist != "Some Artist" {
		t.Errorf("Unexpected tags: %+v", tags)
	}
}

func TestProbeUnsupportedExtension(t *testing.T) {
	tags, err := Probe("/nowhere/file.opus")
	if err != nil {
		t.Fatalf("Expected nil error for unsupported container, got %v", err)
	}
	if tags != (FileTags{}) {
		t.Errorf("Expected zero tags, got %+v", tags)
	}
}

func TestEmbedThumbnailMP3(t *testing.T) {
	path := writeTaggedMP3(t, "Some Song", "Some Artist")

	if err := EmbedThumbnail(path, []byte("\xff\xd8\xff\xe0 fake jpeg")); err != nil {
		t.Fatalf("EmbedThumbnail failed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to reopen tags: %v", err)
	}
	defer tag.Close()
	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(frames) != 1 {
		t.Errorf("Expected 1 picture frame, got %d", len(frames))
	}
}

func writeMinimalFLAC(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.flac")
	// Marker plus a single final StreamInfo block with zeroed fields; no
	// audio frames. Enough for the metadata-only operations under test.
	data := append([]byte("fLaC"), 0x80, 0x00, 0x00, 0x22)
	data = append(data, make([]byte, 34)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)), nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestEmbedThumbnailFLAC(t *testing.T) {
	path := writeMinimalFLAC(t)

	if err := EmbedThumbnail(path, encodeTestJPEG(t)); err != nil {
		t.Fatalf("EmbedThumbnail failed: %v", err)
	}

	f, err := flac.ParseFile(path)
	if err != nil {
		t.Fatalf("Failed to reparse flac: %v", err)
	}
	found := false
	for _, block := range f.Meta {
		if block.Type == flac.Picture {
			found = true
		}
	}
	if !found {
		t.Error("Expected a picture block after embedding")
	}
}

func TestEmbedThumbnailUnsupported(t *testing.T) {
	if err := EmbedThumbnail("/nowhere/file.opus", nil); err == nil {
		t.Error("Expected error for unsupported container")
	}
}
