// Package studio holds the per-user editing state: the settings form, the
// last refined prompt, the current preview and the error banner.
package studio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/preview"
	"promptmaster/internal/providers/prompt"
)

// Previewer acquires preview media for a refined prompt.
type Previewer interface {
	Acquire(ctx context.Context, req preview.Request) (preview.Outcome, error)
}

// Ticket identifies one started preview. Only the ticket holding the
// latest generation may complete it.
type Ticket struct {
	Generation uint64
	Request    preview.Request
}

// Snapshot is a copy of the session for display.
type Snapshot struct {
	ID         string                    `json:"id"`
	Locale     string                    `json:"locale"`
	Settings   domain.GenerationSettings `json:"settings"`
	Result     *domain.RefinedResult     `json:"result,omitempty"`
	Preview    *domain.MediaHandle       `json:"preview,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Refining   bool                      `json:"refining"`
	Previewing bool                      `json:"previewing"`
	Generation uint64                    `json:"generation"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

type Session struct {
	id        string
	refiner   prompt.Refiner
	previewer Previewer
	logger    zerolog.Logger
	tracker   preview.Tracker

	mu         sync.Mutex
	locale     string
	settings   domain.GenerationSettings
	result     *domain.RefinedResult
	preview    domain.MediaHandle
	errMsg     string
	refining   bool
	previewing bool
	updatedAt  time.Time
}

func (s *Session) ID() string { return s.id }

func (s *Session) Settings() domain.GenerationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies fn to a copy of the settings and stores the result.
func (s *Session) UpdateSettings(fn func(*domain.GenerationSettings)) domain.GenerationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	fn(&next)
	s.settings = next
	s.touch()
	return next
}

// SetStyle switches the style and resets the sub-style to its first entry.
func (s *Session) SetStyle(style domain.Style) domain.GenerationSettings {
	return s.UpdateSettings(func(gs *domain.GenerationSettings) { *gs = gs.WithStyle(style) })
}

func (s *Session) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = i18n.Normalize(locale)
}

func (s *Session) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// Refine turns the current idea into a structured prompt. A failure keeps
// the previous result and sets the localized error banner.
func (s *Session) Refine(ctx context.Context) (domain.RefinedResult, error) {
	s.mu.Lock()
	settings := s.settings
	if err := settings.Validate(); err != nil {
		s.mu.Unlock()
		return domain.RefinedResult{}, err
	}
	if s.refining || s.previewing {
		s.mu.Unlock()
		return domain.RefinedResult{}, domain.ErrBusy
	}
	s.refining = true
	s.errMsg = ""
	s.preview = domain.MediaHandle{}
	token := s.tracker.Next()
	s.touch()
	s.mu.Unlock()

	res, err := s.refiner.Refine(ctx, settings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refining = false
	s.touch()
	if !s.tracker.IsCurrent(token) {
		s.logger.Debug().Uint64("generation", token).Msg("dropping stale refinement")
		return domain.RefinedResult{}, ErrStale
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("refinement failed")
		s.errMsg = refineMessage(s.locale, err)
		return domain.RefinedResult{}, err
	}
	s.result = &res
	return res, nil
}

// BeginPreview marks the session busy and returns the request to run.
func (s *Session) BeginPreview() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refining || s.previewing {
		return Ticket{}, domain.ErrBusy
	}
	if s.result == nil {
		return Ticket{}, domain.ErrNoRefinedResult
	}
	if err := s.settings.ValidatePreview(); err != nil {
		return Ticket{}, err
	}
	s.previewing = true
	s.errMsg = ""
	s.touch()
	return Ticket{
		Generation: s.tracker.Next(),
		Request: preview.Request{
			Prompt:      s.result.Prompt,
			MediaKind:   s.settings.MediaKind,
			AspectRatio: s.settings.AspectRatio,
			Locale:      s.locale,
		},
	}, nil
}

// CompletePreview records the outcome of t. It reports false, and changes
// nothing, when a newer generation has started since t was issued.
func (s *Session) CompletePreview(t Ticket, out preview.Outcome, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracker.IsCurrent(t.Generation) {
		s.logger.Debug().Uint64("generation", t.Generation).Msg("dropping stale preview")
		return false
	}
	s.previewing = false
	s.touch()
	switch {
	case err != nil:
		s.errMsg = PreviewMessage(s.locale, err)
	case out.Cancelled:
	default:
		s.preview = out.Handle
	}
	return true
}

// AbandonPreview releases an in-flight preview. Its result will be dropped
// when it arrives.
func (s *Session) AbandonPreview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.previewing {
		return false
	}
	s.tracker.Next()
	s.previewing = false
	s.touch()
	return true
}

// GeneratePreview runs a full preview synchronously.
func (s *Session) GeneratePreview(ctx context.Context) (preview.Outcome, error) {
	ticket, err := s.BeginPreview()
	if err != nil {
		return preview.Outcome{}, err
	}
	out, err := s.previewer.Acquire(ctx, ticket.Request)
	if !s.CompletePreview(ticket, out, err) {
		return preview.Outcome{}, ErrStale
	}
	return out, err
}

func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	s.touch()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.id,
		Locale:     s.locale,
		Settings:   s.settings,
		Error:      s.errMsg,
		Refining:   s.refining,
		Previewing: s.previewing,
		Generation: s.tracker.Current(),
		UpdatedAt:  s.updatedAt,
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	if !s.preview.IsZero() {
		handle := s.preview
		snap.Preview = &handle
	}
	return snap
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}

// ErrStale is returned when a newer request superseded the one that just finished.
var ErrStale = errors.New("result superseded by a newer request")

func refineMessage(locale string, err error) string {
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return i18n.Text(locale, i18n.MsgQuotaExceeded)
	}
	return i18n.Text(locale, i18n.MsgRefineFailed)
}

// PreviewMessage renders the preview error banner: the localized prefix
// followed by the cause.
func PreviewMessage(locale string, err error) string {
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return i18n.Text(locale, i18n.MsgPreviewFailed, i18n.Text(locale, i18n.MsgQuotaExceeded))
	}
	return i18n.Text(locale, i18n.MsgPreviewFailed, causeText(err))
}

func causeText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoImageProduced):
		return "No image generated"
	case errors.Is(err, domain.ErrVideoGenerationFailed):
		return "Video generation failed to return a URI"
	case errors.Is(err, domain.ErrVideoDownloadFailed):
		return "Failed to download video bytes"
	default:
		return err.Error()
	}
}
