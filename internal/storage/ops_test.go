package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"normal name.mp3", "normal name.mp3"},
		{`a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"trailing dots... ", "trailing dots"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestMoveContents(t *testing.T) {
	tempDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	writeFile(t, tempDir, "b.mp4", "video")
	writeFile(t, tempDir, "a.srt", "subs")
	writeFile(t, tempDir, "a.mp4.part", "partial")
	writeFile(t, tempDir, "a.ytdl", "state")

	var lastPercent int
	paths, err := MoveContents(tempDir, outputDir, false, func(p int) { lastPercent = p })
	if err != nil {
		t.Fatalf("MoveContents failed: %v", err)
	}

	// Partial and state files are dropped, the rest land sorted
	if len(paths) != 2 {
		t.Fatalf("Expected 2 moved files, got %d: %v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "a.srt" || filepath.Base(paths[1]) != "b.mp4" {
		t.Errorf("Unexpected order: %v", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}
	if lastPercent != 100 {
		t.Errorf("Expected final progress 100, got %d", lastPercent)
	}
	// The job temp dir is gone afterwards
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Error("Expected temp dir to be removed")
	}
}

func TestMoveContentsKeepCache(t *testing.T) {
	tempDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	writeFile(t, tempDir, "a.mp4", "video")
	writeFile(t, tempDir, "a.mp4.part", "partial")

	paths, err := MoveContents(tempDir, outputDir, true, nil)
	if err != nil {
		t.Fatalf("MoveContents failed: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("Expected partial files kept, got %v", paths)
	}
	if _, err := os.Stat(tempDir); err != nil {
		t.Error("Expected temp dir preserved with keepCache")
	}
}

func TestMoveContentsSanitizesNames(t *testing.T) {
	tempDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	writeFile(t, tempDir, "a*b?.mp3", "audio")

	paths, err := MoveContents(tempDir, outputDir, false, nil)
	if err != nil {
		t.Fatalf("MoveContents failed: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "ab.mp3" {
		t.Errorf("Expected sanitized name, got %v", paths)
	}
}

func TestDeleteFolderIfEmpty(t *testing.T) {
	empty := t.TempDir()
	if err := DeleteFolderIfEmpty(empty); err != nil {
		t.Fatalf("DeleteFolderIfEmpty failed: %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("Expected empty dir removed")
	}

	full := t.TempDir()
	writeFile(t, full, "keep.txt", "x")
	if err := DeleteFolderIfEmpty(full); err != nil {
		t.Fatalf("DeleteFolderIfEmpty failed: %v", err)
	}
	if _, err := os.Stat(full); err != nil {
		t.Error("Expected non-empty dir preserved")
	}

	if err := DeleteFolderIfEmpty(filepath.Join(full, "missing")); err != nil {
		t.Errorf("Expected missing dir to be a no-op, got %v", err)
	}
}
