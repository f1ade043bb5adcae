// Package httpapp exposes the download queue over a JSON HTTP API.
package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mhalvorsen/fetchd/internal/jobs"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/resolver"
	"github.com/mhalvorsen/fetchd/internal/store"
)

type Handler struct {
	Store    *store.DB
	Queue    *jobs.Queue
	Factory  *jobs.Factory
	Resolver *resolver.Client
	Logger   *logger.Logger
}

func NewHandler(db *store.DB, queue *jobs.Queue, factory *jobs.Factory, res *resolver.Client, log *logger.Logger) *Handler {
	return &Handler{
		Store:    db,
		Queue:    queue,
		Factory:  factory,
		Resolver: res,
		Logger:   log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/downloads", h.StageDownloads)
		r.Post("/downloads/enqueue", h.EnqueueDownloads)
		r.Post("/downloads/switch-type", h.SwitchType)
		r.Get("/downloads", h.ListDownloads)
		r.Get("/downloads/{id}", h.GetDownload)
		r.Post("/downloads/{id}/cancel", h.CancelDownload)
		r.Post("/downloads/{id}/requeue", h.RequeueDownload)
		r.Delete("/downloads/processing", h.ClearProcessing)

		r.Get("/history", h.ListHistory)
		r.Post("/history/{id}/redownload", h.RedownloadHistory)
		r.Get("/stats", h.Stats)

		r.Get("/templates", h.ListTemplates)
		r.Post("/templates", h.CreateTemplate)
		r.Delete("/templates/{id}", h.DeleteTemplate)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
