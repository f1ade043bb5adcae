package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mhalvorsen/fetchd/internal/constants"
)

// Sanitize strips filesystem-hostile characters and trailing dots/spaces.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.InvalidPathChars, r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// MoveContents relocates every regular file from tempDir into outputDir and
// returns the final paths, lexically ordered. Partial .part/.ytdl files are
// skipped unless keepCache is set. onProgress receives 0-100 as files land.
func MoveContents(tempDir, outputDir string, keepCache bool, onProgress func(percent int)) ([]string, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}
	if err := EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !keepCache && isPartialFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var finalPaths []string
	for i, name := range names {
		src := filepath.Join(tempDir, name)
		dst := filepath.Join(outputDir, Sanitize(name))
		if err := moveFile(src, dst); err != nil {
			return finalPaths, err
		}
		finalPaths = append(finalPaths, dst)
		if onProgress != nil {
			onProgress((i + 1) * 100 / len(names))
		}
	}

	if !keepCache {
		_ = os.RemoveAll(tempDir)
	}
	return finalPaths, nil
}

func isPartialFile(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") ||
		strings.HasSuffix(name, ".frag")
}

// moveFile renames when possible and falls back to copy+delete for
// cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// DeleteFolderIfEmpty removes dirPath only when it holds no entries.
func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}
