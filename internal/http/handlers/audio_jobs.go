package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"monetiq/internal/domain"
	"monetiq/internal/queue"
)

type createJobRequest struct {
	AudioType   string `json:"audio_type"`
	DurationSec int    `json:"duration_sec"`
	Preset      string `json:"preset,omitempty"`
	Text        string `json:"text,omitempty"`
	VoiceID     string `json:"voice_id,omitempty"`
}

type jobResponse struct {
	JobID       string     `json:"job_id"`
	AudioType   string     `json:"audio_type"`
	Status      string     `json:"status"`
	DurationSec int        `json:"duration_sec"`
	Error       string     `json:"error,omitempty"`
	OutputURL   string     `json:"output_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateAudioJob reserves quota and enqueues a generation job. The response
// is 202: generation happens on the worker, callers poll GetAudioJob.
func (a *App) CreateAudioJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	var req createJobRequest
	if err := decodeBody(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	job, err := a.Manager.Enqueue(r.Context(), queue.EnqueueParams{
		UserID:      userID,
		Type:        domain.AudioType(req.AudioType),
		DurationSec: req.DurationSec,
		Preset:      req.Preset,
		Text:        req.Text,
		VoiceID:     req.VoiceID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			a.error(w, http.StatusForbidden, "quota_exceeded", "not enough remaining seconds for this request")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a.json(w, http.StatusAccepted, jobResponse{
		JobID:       job.ID,
		AudioType:   string(job.Type),
		Status:      string(job.Status),
		DurationSec: job.DurationSec,
		CreatedAt:   job.CreatedAt,
	})
}

// GetAudioJob is the status poll endpoint. Only the owning user can see a
// job; a foreign job id reads as not found.
func (a *App) GetAudioJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	resp := jobResponse{
		JobID:       job.ID,
		AudioType:   string(job.Type),
		Status:      string(job.Status),
		DurationSec: job.DurationSec,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == domain.JobStatusSucceeded {
		if out, err := a.Outputs.ByJob(r.Context(), job.ID); err == nil {
			resp.OutputURL = out.PublicURL
		}
	}
	a.json(w, http.StatusOK, resp)
}

type outputResponse struct {
	OutputID  string    `json:"output_id"`
	JobID     string    `json:"job_id"`
	Provider  string    `json:"provider"`
	PublicURL string    `json:"public_url"`
	MIME      string    `json:"mime"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// GetAudioJobOutput lists the stored output of a finished job.
func (a *App) GetAudioJobOutput(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")

	if _, err := a.Jobs.GetForUser(r.Context(), jobID, userID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	out, err := a.Outputs.ByJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no output for this job yet")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal_error", "failed to load output")
		return
	}
	a.json(w, http.StatusOK, outputResponse{
		OutputID:  out.ID,
		JobID:     out.JobID,
		Provider:  out.Provider,
		PublicURL: out.PublicURL,
		MIME:      out.MIME,
		Bytes:     out.Bytes,
		CreatedAt: out.CreatedAt,
	})
}
