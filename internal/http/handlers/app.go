package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"monetiq/internal/infra"
	"monetiq/internal/middleware"
	"monetiq/internal/outputs"
	"monetiq/internal/queue"
	"monetiq/internal/quota"
	"monetiq/internal/shots"
	"monetiq/internal/storage"
	"monetiq/internal/tasks"
	"monetiq/internal/worker"
)

// App carries every handler dependency. Handlers are methods on App, wired
// once in cmd/api.
type App struct {
	SQL     infra.SQLExecutor
	Manager *queue.Manager
	Jobs    *queue.Jobs
	Ledger  *quota.Ledger
	Runner  *worker.Runner
	Shots   *shots.Runner
	Spawner *tasks.Spawner
	Outputs *outputs.Writer
	Store   storage.Store
	Reader  storage.Reader
	Logger  zerolog.Logger
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (a *App) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error().Err(err).Msg("http: response encode failed")
	}
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: code, Message: message})
}

// currentUserID returns the authenticated subject or writes a 401.
func (a *App) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return "", false
	}
	return userID, true
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
