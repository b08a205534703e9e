package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/middleware"
	"promptmaster/internal/studio"
)

// settingsPatch names the fields a request replaces. Absent fields keep
// their current value.
type settingsPatch struct {
	RawIdea        *string `json:"rawIdea"`
	MediaType      *string `json:"mediaType"`
	Style          *string `json:"style"`
	SubStyle       *string `json:"subStyle"`
	AspectRatio    *string `json:"aspectRatio"`
	CameraAngle    *string `json:"cameraAngle"`
	Lighting       *string `json:"lighting"`
	Mood           *string `json:"mood"`
	NegativePrompt *string `json:"negativePrompt"`
}

// apply returns gs with the patch applied. A style change re-derives the
// sub-style unless the patch names one.
func (p settingsPatch) apply(gs domain.GenerationSettings) (domain.GenerationSettings, error) {
	if p.RawIdea != nil {
		gs.RawIdea = *p.RawIdea
	}
	if p.MediaType != nil {
		kind, err := domain.ParseMediaKind(*p.MediaType)
		if err != nil {
			return gs, err
		}
		gs.MediaKind = kind
	}
	if p.Style != nil {
		style, err := domain.ParseStyle(*p.Style)
		if err != nil {
			return gs, err
		}
		if style != gs.Style {
			gs = gs.WithStyle(style)
		}
	}
	if p.SubStyle != nil {
		if strings.TrimSpace(*p.SubStyle) == "" {
			gs.SubStyle = ""
		} else {
			sub, err := domain.ParseSubStyle(gs.Style, *p.SubStyle)
			if err != nil {
				return gs, err
			}
			gs.SubStyle = sub
		}
	}
	if p.AspectRatio != nil {
		ratio, err := domain.ParseAspectRatio(*p.AspectRatio)
		if err != nil {
			return gs, err
		}
		gs.AspectRatio = ratio
	}
	if p.CameraAngle != nil {
		angle, err := domain.ParseCameraAngle(*p.CameraAngle)
		if err != nil {
			return gs, err
		}
		gs.CameraAngle = angle
	}
	if p.Lighting != nil {
		gs.Lighting = *p.Lighting
	}
	if p.Mood != nil {
		gs.Mood = *p.Mood
	}
	if p.NegativePrompt != nil {
		gs.NegativePrompt = *p.NegativePrompt
	}
	return gs, nil
}

type createSessionRequest struct {
	settingsPatch
	Locale string `json:"locale"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	settings, err := req.apply(domain.DefaultSettings())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	locale := req.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}
	sess := a.Studio.Create(settings, i18n.Normalize(locale))
	a.json(w, http.StatusCreated, map[string]any{"id": sess.ID(), "settings": sess.Settings()})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

func (a *App) PatchSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var patch settingsPatch
	if err := a.decode(r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	next, err := patch.apply(sess.Settings())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	updated := sess.UpdateSettings(func(gs *domain.GenerationSettings) { *gs = next })
	a.json(w, http.StatusOK, map[string]any{"settings": updated})
}

func (a *App) Refine(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.SetLocale(middleware.LocaleFromContext(r.Context()))
	result, err := sess.Refine(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"result": result})
}

// DismissError clears the session's error banner.
func (a *App) DismissError(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess, err := a.Studio.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return sess, true
}
