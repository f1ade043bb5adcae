// Package resolver fetches descriptive metadata and candidate formats for a
// URL by asking the external tool for its JSON dump. Everything here is
// best-effort: callers absorb failures and continue with what they have.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
)

type Client struct {
	binary string
}

func NewClient(binary string) *Client {
	return &Client{binary: binary}
}

// toolDump is the subset of the tool's -J output this package consumes.
type toolDump struct {
	Title      string       `json:"title"`
	Uploader   string       `json:"uploader"`
	Channel    string       `json:"channel"`
	Duration   float64      `json:"duration"`
	Thumbnail  string       `json:"thumbnail"`
	WebpageURL string       `json:"webpage_url"`
	Playlist   string       `json:"playlist"`
	Formats    []toolFormat `json:"formats"`
	Entries    []toolDump   `json:"entries"`
}

type toolFormat struct {
	FormatID   string  `json:"format_id"`
	FormatNote string  `json:"format_note"`
	Ext        string  `json:"ext"`
	ACodec     string  `json:"acodec"`
	FileSize   float64 `json:"filesize"`
}

// FetchMissingInfo returns the descriptive fields for one URL. Any field may
// be empty; the caller only fills gaps it has.
func (c *Client) FetchMissingInfo(ctx context.Context, mediaURL string) (*domain.MediaInfo, error) {
	dump, err := c.dump(ctx, mediaURL, true)
	if err != nil {
		return nil, err
	}
	return &domain.MediaInfo{
		Title:     dump.Title,
		Author:    dump.author(),
		Duration:  formatDuration(dump.Duration),
		Website:   website(dump.WebpageURL, mediaURL),
		Thumbnail: dump.Thumbnail,
	}, nil
}

// FetchFullResult resolves the URL into cacheable result items, one per
// playlist entry (or a single item for a plain media URL).
func (c *Client) FetchFullResult(ctx context.Context, mediaURL string) ([]*domain.ResultItem, error) {
	dump, err := c.dump(ctx, mediaURL, false)
	if err != nil {
		return nil, err
	}

	entries := dump.Entries
	if len(entries) == 0 {
		entries = []toolDump{*dump}
	}

	items := make([]*domain.ResultItem, 0, len(entries))
	for _, entry := range entries {
		item := &domain.ResultItem{
			URL:           entry.WebpageURL,
			Title:         entry.Title,
			Author:        entry.author(),
			Duration:      formatDuration(entry.Duration),
			Thumbnail:     entry.Thumbnail,
			Website:       website(entry.WebpageURL, mediaURL),
			PlaylistTitle: dump.Playlist,
		}
		if item.URL == "" {
			item.URL = mediaURL
		}
		for _, f := range entry.Formats {
			item.Formats = append(item.Formats, domain.Format{
				FormatID:      f.FormatID,
				Container:     f.Ext,
				Note:          f.FormatNote,
				AudioCodec:    f.ACodec,
				FileSizeBytes: int64(f.FileSize),
			})
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) dump(ctx context.Context, mediaURL string, flat bool) (*toolDump, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.InfoFetchTimeout)
	defer cancel()

	args := []string{"-J"}
	if flat {
		args = append(args, "--flat-playlist")
	}
	args = append(args, mediaURL)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s -J failed: %w: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s returned empty output", c.binary)
	}

	dump := &toolDump{}
	if err := json.Unmarshal(stdout.Bytes(), dump); err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", c.binary, err)
	}
	return dump, nil
}

func (d *toolDump) author() string {
	if d.Uploader != "" {
		return d.Uploader
	}
	return d.Channel
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func website(webpageURL, fallback string) string {
	source := webpageURL
	if source == "" {
		source = fallback
	}
	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
