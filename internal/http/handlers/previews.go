package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"promptmaster/internal/infra/credentials"
	"promptmaster/internal/middleware"
	"promptmaster/internal/preview"
)

type startPreviewRequest struct {
	// VideoAPIKey answers the paid key confirmation. Empty declines it.
	VideoAPIKey string `json:"videoApiKey"`
}

func (a *App) StartPreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req startPreviewRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	sess.SetLocale(middleware.LocaleFromContext(r.Context()))

	job, err := a.Runner.Start(r.Context(), sess, a.videoOverrides(sess.ID(), strings.TrimSpace(req.VideoAPIKey)))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"jobId": job.ID, "generation": job.Generation})
}

// videoOverrides binds the request's key answer to the credential check of
// one session. A key selected in another session is never consulted.
func (a *App) videoOverrides(sessionID, key string) preview.Overrides {
	keys := a.Keys.WithScope(sessionID).WithPicker(credentials.PickerFunc(func(context.Context) (string, error) {
		return key, nil
	}))
	return preview.Overrides{
		Gate:        keys,
		Credentials: keys,
		Confirmer: preview.ConfirmFunc(func(context.Context, string) (bool, error) {
			return key != "", nil
		}),
	}
}

// AbandonPreview supersedes the running preview of a session.
func (a *App) AbandonPreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := a.Runner.Abandon(r.Context(), sess); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) GetPreviewJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// Events streams the session's job updates over a WebSocket.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.Hub.ServeSession(w, r, sess.ID())
}
