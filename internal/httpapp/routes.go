package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mhalvorsen/fetchd/internal/domain"
)

type stageRequest struct {
	URL   string `json:"url"`
	Type  string `json:"type"`
	Quick bool   `json:"quick"`
}

type enqueueRequest struct {
	IDs []int64 `json:"ids"`
}

type switchTypeRequest struct {
	IDs  []int64 `json:"ids"`
	Type string  `json:"type"`
}

type queueResponse struct {
	Jobs     []*domain.DownloadJob `json:"jobs"`
	Warnings []string              `json:"warnings,omitempty"`
}

// StageDownloads resolves a URL and creates staged jobs for inspection. With
// quick set, the resolution step is skipped and the job goes straight to the
// queue; missing metadata is filled in during the download.
func (h *Handler) StageDownloads(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	typ, err := domain.ParseDownloadType(req.Type)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Quick {
		job := h.Factory.FromURL(req.URL, typ)
		warnings, err := h.Queue.Enqueue([]*domain.DownloadJob{job})
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, queueResponse{Jobs: []*domain.DownloadJob{job}, Warnings: warnings})
		return
	}

	items, err := h.Resolver.FetchFullResult(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err)
		return
	}

	// The results cache always reflects the latest resolution.
	if err := h.Store.ClearResults(); err != nil {
		h.Logger.Warn("Failed to clear results cache", "error", err)
	}

	staged := make([]*domain.DownloadJob, 0, len(items))
	for _, item := range items {
		if err := h.Store.InsertResult(item); err != nil {
			h.Logger.Warn("Failed to cache result", "error", err)
		}
		job := h.Factory.FromResult(item, typ)
		if err := h.Store.InsertJob(job); err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		staged = append(staged, job)
	}

	h.writeJSON(w, http.StatusCreated, queueResponse{Jobs: staged})
}

// EnqueueDownloads moves staged jobs into the queue. With no ids, every
// staged job is enqueued.
func (h *Handler) EnqueueDownloads(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var selected []*domain.DownloadJob
	if len(req.IDs) == 0 {
		staged, err := h.Store.ListJobsByStatus(domain.StatusProcessing)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		selected = staged
	} else {
		for _, id := range req.IDs {
			job, err := h.Store.GetJob(id)
			if err != nil {
				h.writeError(w, http.StatusInternalServerError, err)
				return
			}
			if job == nil {
				h.writeError(w, http.StatusNotFound, errors.New("job "+strconv.FormatInt(id, 10)+" not found"))
				return
			}
			selected = append(selected, job)
		}
	}

	warnings, err := h.Queue.Enqueue(selected)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queueResponse{Jobs: selected, Warnings: warnings})
}

// SwitchType re-resolves staged jobs against their retained format lists
// under a different download type.
func (h *Handler) SwitchType(w http.ResponseWriter, r *http.Request) {
	var req switchTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	typ, err := domain.ParseDownloadType(req.Type)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var selected []*domain.DownloadJob
	for _, id := range req.IDs {
		job, err := h.Store.GetJob(id)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if job == nil {
			h.writeError(w, http.StatusNotFound, errors.New("job "+strconv.FormatInt(id, 10)+" not found"))
			return
		}
		selected = append(selected, job)
	}

	h.Factory.SwitchType(selected, typ)
	for _, job := range selected {
		if err := h.Store.UpdateJob(job); err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, queueResponse{Jobs: selected})
}

func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		list, err := h.Store.ListJobs()
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		h.writeJSON(w, http.StatusOK, list)
		return
	}

	var statuses []domain.Status
	for _, s := range strings.Split(raw, ",") {
		status, err := domain.ParseStatus(strings.TrimSpace(s))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		statuses = append(statuses, status)
	}

	list, err := h.Store.ListJobsByStatus(statuses...)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := h.Store.GetJob(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		h.writeError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Queue.Cancel(id); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *Handler) RequeueDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	warnings, err := h.Queue.Requeue(id)
	if err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queueResponse{Warnings: warnings})
}

// ClearProcessing drops all staged jobs, abandoning the staging session.
func (h *Handler) ClearProcessing(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProcessingJobs(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = n
	}
	entries, err := h.Store.ListHistory(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// RedownloadHistory rebuilds a job from a past download and enqueues it
// directly; completed downloads have no queue row left to requeue from.
func (h *Handler) RedownloadHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := h.Store.GetHistoryEntry(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entry == nil {
		h.writeError(w, http.StatusNotFound, errors.New("history entry not found"))
		return
	}

	job := h.Factory.FromHistory(entry)
	warnings, err := h.Queue.Enqueue([]*domain.DownloadJob{job})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, queueResponse{Jobs: []*domain.DownloadJob{job}, Warnings: warnings})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{}
	for _, status := range []domain.Status{
		domain.StatusProcessing,
		domain.StatusQueued,
		domain.StatusActive,
		domain.StatusCancelled,
		domain.StatusError,
	} {
		n, err := h.Store.CountJobsByStatus(status)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		counts[string(status)] = n
	}
	h.writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListCommandTemplates()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.CommandTemplate
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if t.Title == "" || t.Content == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("title and content are required"))
		return
	}
	if err := h.Store.InsertCommandTemplate(&t); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Store.DeleteCommandTemplate(id); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
