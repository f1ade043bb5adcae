package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/storage"
)

// auditLog is the optional per-job log file on disk. A nil receiver is a
// disabled log, so callers never have to branch on the setting.
type auditLog struct {
	path string
	log  *logger.Logger
}

// openAuditLog creates the per-job log file with a header block describing
// the job and the exact command. Disabled when logging is off or the job is
// incognito; returns nil in that case.
func (w *Worker) openAuditLog(job *domain.DownloadJob, args []string, log *logger.Logger) *auditLog {
	if !w.cfg.LogDownloads || w.cfg.Incognito {
		return nil
	}

	dir := filepath.Join(w.cfg.WorkDir, constants.LogsDirName)
	if err := storage.EnsureDir(dir); err != nil {
		log.Warn("Failed to create log directory", "error", err)
		return nil
	}

	name := storage.Sanitize(fmt.Sprintf("%d - %s", job.ID, job.Title))
	path := filepath.Join(dir, name+".log")

	header := fmt.Sprintf("Title: %s\nURL: %s\nType: %s\nFormat: %s\n\nCommand:\nyt-dlp %s\n\n",
		job.Title, job.URL, job.Type, job.Format.FormatID, strings.Join(args, " "))
	if err := os.WriteFile(path, []byte(header), constants.FilePermissions); err != nil {
		log.Warn("Failed to create download log", "error", err)
		return nil
	}
	return &auditLog{path: path, log: log}
}

func (a *auditLog) appendLine(line string) {
	if a == nil || line == "" {
		return
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		a.log.Warn("Failed to append to download log", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		a.log.Warn("Failed to append to download log", "error", err)
	}
}
