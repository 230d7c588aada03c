package handlers

import (
	"net/http"

	"monetiq/internal/worker"
)

type claimRequest struct {
	WorkerID string `json:"worker_id,omitempty"`
}

type claimResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	WorkerID string `json:"worker_id"`
	AssetID  string `json:"asset_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ClaimJob claims the oldest queued job and processes it inline, returning
// once the job reaches a terminal state. An empty queue is a normal response,
// not an error. The caller may pin a worker id; otherwise a fresh one is
// minted for the cycle.
func (a *App) ClaimJob(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			a.error(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}
	workerID := req.WorkerID
	if workerID == "" {
		workerID = worker.NewWorkerID()
	}

	outcome, err := a.Runner.RunOnce(r.Context(), workerID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if outcome == nil {
		a.json(w, http.StatusOK, map[string]string{"message": "No jobs in queue"})
		return
	}

	resp := claimResponse{
		JobID:    outcome.Job.ID,
		WorkerID: workerID,
	}
	if outcome.Err != nil {
		resp.Status = "failed"
		resp.Error = outcome.Err.Error()
	} else {
		resp.Status = "succeeded"
		resp.AssetID = outcome.Result.OutputID
	}
	a.json(w, http.StatusOK, resp)
}
