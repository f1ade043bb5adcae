package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mhalvorsen/fetchd/internal/constants"
)

// Config holds all application configuration. It is built once at startup and
// threaded explicitly into every component; there is no ambient global.
type Config struct {
	Port    string
	DBPath  string
	WorkDir string // temp downloads, side-config files, logs

	// Per-type output directories and filename templates.
	AudioDir          string
	VideoDir          string
	CommandDir        string
	AudioNameTemplate string
	VideoNameTemplate string

	// Format selection.
	PreferredVideoQuality string // "best", "worst" or a height token like "720p"
	PreferredFormatID     string
	VideoFormatIDs        []string // ascending quality ladder, e.g. 144p..2160p
	DefaultContainer      string

	// Post-processing toggles.
	SponsorBlockAudio  []string
	SponsorBlockVideo  []string
	EmbedSubtitles     bool
	AddChapters        bool
	WriteThumbnail     bool
	CropThumbnail      bool
	EmbedVideoThumb    bool
	SubtitleLanguages  string
	UseAudioQuality    bool
	AudioQuality       int
	PreserveModTime    bool
	RestrictFilenames  bool
	KeepCache          bool

	// Tool execution.
	ToolBinary          string
	UseAria2            bool
	ConcurrentFragments int
	RateLimit           string
	Proxy               string
	CookiesPath         string

	// Privacy and network.
	Incognito           bool
	LogDownloads        bool
	AllowMeteredNetwork bool
	NetworkMetered      bool

	// Logging.
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, "Downloads", "fetchd")

	return &Config{
		Port:    getEnv("PORT", constants.DefaultPort),
		DBPath:  getEnv("DB_PATH", constants.DefaultDBPath),
		WorkDir: getEnv("WORK_DIR", filepath.Join(base, ".work")),

		AudioDir:          getEnv("AUDIO_DIR", filepath.Join(base, "audio")),
		VideoDir:          getEnv("VIDEO_DIR", filepath.Join(base, "video")),
		CommandDir:        getEnv("COMMAND_DIR", filepath.Join(base, "command")),
		AudioNameTemplate: getEnv("AUDIO_NAME_TEMPLATE", constants.DefaultOutputTemplate),
		VideoNameTemplate: getEnv("VIDEO_NAME_TEMPLATE", constants.DefaultOutputTemplate),

		PreferredVideoQuality: getEnv("VIDEO_QUALITY", constants.FormatIDBest),
		PreferredFormatID:     getEnv("FORMAT_ID", ""),
		VideoFormatIDs:        getEnvList("VIDEO_FORMATS", []string{"144p", "240p", "360p", "480p", "720p", "1080p", "1440p", "2160p"}),
		DefaultContainer:      getEnv("DEFAULT_CONTAINER", constants.DefaultContainerLabel),

		SponsorBlockAudio: getEnvList("SPONSORBLOCK_AUDIO", nil),
		SponsorBlockVideo: getEnvList("SPONSORBLOCK_VIDEO", nil),
		EmbedSubtitles:    getEnvBool("EMBED_SUBTITLES", false),
		AddChapters:       getEnvBool("ADD_CHAPTERS", false),
		WriteThumbnail:    getEnvBool("WRITE_THUMBNAIL", false),
		CropThumbnail:     getEnvBool("CROP_THUMBNAIL", true),
		EmbedVideoThumb:   getEnvBool("EMBED_VIDEO_THUMBNAIL", false),
		SubtitleLanguages: getEnv("SUBTITLE_LANGUAGES", "en.*"),
		UseAudioQuality:   getEnvBool("USE_AUDIO_QUALITY", false),
		AudioQuality:      getEnvInt("AUDIO_QUALITY", 0),
		PreserveModTime:   getEnvBool("PRESERVE_MTIME", false),
		RestrictFilenames: getEnvBool("RESTRICT_FILENAMES", true),
		KeepCache:         getEnvBool("KEEP_CACHE", false),

		ToolBinary:          getEnv("TOOL_BINARY", constants.DefaultToolBinary),
		UseAria2:            getEnvBool("USE_ARIA2", false),
		ConcurrentFragments: getEnvInt("CONCURRENT_FRAGMENTS", 1),
		RateLimit:           getEnv("RATE_LIMIT", ""),
		Proxy:               getEnv("PROXY", ""),
		CookiesPath:         getEnv("COOKIES_PATH", ""),

		Incognito:           getEnvBool("INCOGNITO", false),
		LogDownloads:        getEnvBool("LOG_DOWNLOADS", false),
		AllowMeteredNetwork: getEnvBool("ALLOW_METERED", true),
		NetworkMetered:      getEnvBool("NETWORK_METERED", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}
	if c.WorkDir == "" {
		errors = append(errors, "WORK_DIR cannot be empty")
	}
	for name, dir := range map[string]string{
		"AUDIO_DIR":   c.AudioDir,
		"VIDEO_DIR":   c.VideoDir,
		"COMMAND_DIR": c.CommandDir,
	} {
		if dir == "" {
			errors = append(errors, name+" cannot be empty")
		}
	}

	if c.ToolBinary == "" {
		errors = append(errors, "TOOL_BINARY cannot be empty")
	}
	if c.ConcurrentFragments < 1 {
		errors = append(errors, fmt.Sprintf("CONCURRENT_FRAGMENTS must be at least 1, got: %d", c.ConcurrentFragments))
	}
	if len(c.VideoFormatIDs) == 0 {
		errors = append(errors, "VIDEO_FORMATS cannot be empty")
	}

	switch c.PreferredVideoQuality {
	case "best", "worst":
	default:
		if !hasHeightPrefix(c.PreferredVideoQuality) {
			errors = append(errors, fmt.Sprintf("VIDEO_QUALITY must be best, worst or a height token like 720p, got: %s", c.PreferredVideoQuality))
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// OutputDir returns the configured output directory for a job type string.
func (c *Config) OutputDir(jobType string) string {
	switch jobType {
	case "audio":
		return c.AudioDir
	case "command":
		return c.CommandDir
	default:
		return c.VideoDir
	}
}

func hasHeightPrefix(s string) bool {
	trimmed := strings.TrimSuffix(s, "p")
	if trimmed == s || trimmed == "" {
		return false
	}
	_, err := strconv.Atoi(trimmed)
	return err == nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
