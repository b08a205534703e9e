package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
	"promptmaster/internal/events"
	"promptmaster/internal/i18n"
	"promptmaster/internal/infra/credentials"
	"promptmaster/internal/jobs"
	"promptmaster/internal/middleware"
	"promptmaster/internal/studio"
)

const maxBodyBytes = 1 << 20

type App struct {
	Studio *studio.Manager
	Runner *jobs.Runner
	Jobs   jobs.Store
	Hub    *events.Hub
	// Keys is the paid video key selection; a preview request may answer it.
	Keys    *credentials.Selector
	Catalog domain.Catalog
	Logger  zerolog.Logger
}

type AppOptions struct {
	Studio *studio.Manager
	Runner *jobs.Runner
	Jobs   jobs.Store
	Hub    *events.Hub
	Keys   *credentials.Selector
	Logger *zerolog.Logger
}

func NewApp(opts AppOptions) (*App, error) {
	switch {
	case opts.Studio == nil:
		return nil, errors.New("studio manager is required")
	case opts.Runner == nil:
		return nil, errors.New("job runner is required")
	case opts.Jobs == nil:
		return nil, errors.New("job store is required")
	case opts.Hub == nil:
		return nil, errors.New("event hub is required")
	case opts.Keys == nil:
		return nil, errors.New("key selector is required")
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &App{
		Studio:  opts.Studio,
		Runner:  opts.Runner,
		Jobs:    opts.Jobs,
		Hub:     opts.Hub,
		Keys:    opts.Keys,
		Catalog: domain.NewCatalog(),
		Logger:  logger,
	}, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func (a *App) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	return nil
}

// fail maps a domain error onto a status and a localized message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrInvalidSettings):
		a.error(w, http.StatusBadRequest, "invalid_settings", i18n.Text(locale, i18n.MsgInvalidSettings, err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrBusy):
		a.error(w, http.StatusConflict, "busy", i18n.Text(locale, i18n.MsgBusy))
	case errors.Is(err, domain.ErrNoRefinedResult):
		a.error(w, http.StatusConflict, "no_refined_result", i18n.Text(locale, i18n.MsgNoRefinedResult))
	case errors.Is(err, studio.ErrStale):
		a.error(w, http.StatusConflict, "superseded", err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", i18n.Text(locale, i18n.MsgQuotaExceeded))
	case errors.Is(err, domain.ErrRefinementFailure):
		a.error(w, http.StatusBadGateway, "refinement_failed", i18n.Text(locale, i18n.MsgRefineFailed))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
