// Package notify is the boundary to user-facing notifications. Rendering is
// out of scope for this service; the default implementation writes structured
// log lines so every event is still observable.
package notify

import (
	"github.com/mhalvorsen/fetchd/internal/logger"
)

// Notifier receives the user-visible moments of a download's life.
type Notifier interface {
	Progress(jobID int64, title string, percent float64, line string)
	Completed(jobID int64, title string, finalPaths []string)
	Errored(jobID int64, title string, message string)
	Warning(message string)
}

// LogNotifier is the default Notifier, backed by the application logger.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

func (n *LogNotifier) Progress(jobID int64, title string, percent float64, line string) {
	n.log.Debug("Download progress", "job_id", jobID, "title", title, "percent", percent, "output", line)
}

func (n *LogNotifier) Completed(jobID int64, title string, finalPaths []string) {
	n.log.Info("Download finished", "job_id", jobID, "title", title, "paths", finalPaths)
}

func (n *LogNotifier) Errored(jobID int64, title string, message string) {
	n.log.Error("Download failed", "job_id", jobID, "title", title, "error", message)
}

func (n *LogNotifier) Warning(message string) {
	n.log.Warn(message)
}
