// Package preview acquires a displayable image or video for a refined
// prompt. Video acquisition runs a credential gate, submits a long-running
// Veo job, polls it with a bounded loop and downloads the result.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/providers/image"
	"promptmaster/internal/providers/video"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 120
)

// CredentialGate reports and changes whether the user picked a paid key.
type CredentialGate interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	OpenSelectKey(ctx context.Context) error
}

// CredentialProvider resolves the key used for one attempt.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// MediaSink persists downloaded video bytes and returns a handle to them.
type MediaSink interface {
	Store(ctx context.Context, data []byte, mimeType string) (domain.MediaHandle, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Images      image.Generator
	Videos      video.Backend
	Gate        CredentialGate
	Credentials CredentialProvider
	// Confirmer may be nil, in which case a missing key cancels the preview.
	Confirmer    Confirmer
	Sink         MediaSink
	Observer     Observer
	Sleep        SleepFunc
	PollInterval time.Duration
	MaxPolls     int
	Logger       *zerolog.Logger
}

// Request is one acquisition. Locale picks the language of the confirmation.
type Request struct {
	Prompt      string
	MediaKind   domain.MediaKind
	AspectRatio domain.AspectRatio
	Locale      string
}

// Outcome is the result of a successful Acquire. Cancelled means the user
// declined the key prompt; Handle is then empty.
type Outcome struct {
	Handle    domain.MediaHandle
	Cancelled bool
}

type Workflow struct {
	images       image.Generator
	videos       video.Backend
	gate         CredentialGate
	credentials  CredentialProvider
	confirmer    Confirmer
	sink         MediaSink
	observer     Observer
	sleep        SleepFunc
	pollInterval time.Duration
	maxPolls     int
	logger       zerolog.Logger
}

func NewWorkflow(opts Options) (*Workflow, error) {
	switch {
	case opts.Images == nil:
		return nil, errors.New("image generator is required")
	case opts.Videos == nil:
		return nil, errors.New("video backend is required")
	case opts.Gate == nil:
		return nil, errors.New("credential gate is required")
	case opts.Credentials == nil:
		return nil, errors.New("credential provider is required")
	}
	w := &Workflow{
		images:       opts.Images,
		videos:       opts.Videos,
		gate:         opts.Gate,
		credentials:  opts.Credentials,
		confirmer:    opts.Confirmer,
		sink:         opts.Sink,
		observer:     opts.Observer,
		sleep:        opts.Sleep,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		logger:       zerolog.New(io.Discard),
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.maxPolls <= 0 {
		w.maxPolls = DefaultMaxPolls
	}
	if opts.Logger != nil {
		w.logger = *opts.Logger
	}
	w.logger = w.logger.With().Str("component", "preview").Logger()
	return w, nil
}

// Overrides replaces per-request collaborators. Nil fields keep the
// workflow's own.
type Overrides struct {
	Gate        CredentialGate
	Credentials CredentialProvider
	Confirmer   Confirmer
	Observer    Observer
}

// With returns a copy of w using the non-nil collaborators of o.
func (w *Workflow) With(o Overrides) *Workflow {
	cp := *w
	if o.Gate != nil {
		cp.gate = o.Gate
	}
	if o.Credentials != nil {
		cp.credentials = o.Credentials
	}
	if o.Confirmer != nil {
		cp.confirmer = o.Confirmer
	}
	if o.Observer != nil {
		cp.observer = o.Observer
	}
	return &cp
}

// Acquire produces a preview for req. Failures are logged here and returned
// wrapped around one of the domain sentinels.
func (w *Workflow) Acquire(ctx context.Context, req Request) (Outcome, error) {
	m := newMachine(w.observer)
	var (
		out Outcome
		err error
	)
	switch {
	case strings.TrimSpace(req.Prompt) == "":
		err = m.fail(ctx, fmt.Errorf("%w: prompt is required", domain.ErrInvalidSettings))
	case req.MediaKind == domain.MediaImage:
		out, err = w.acquireImage(ctx, m, req)
	case req.MediaKind == domain.MediaVideo:
		out, err = w.acquireVideo(ctx, m, req)
	default:
		err = m.fail(ctx, fmt.Errorf("%w: unknown media type %q", domain.ErrInvalidSettings, req.MediaKind))
	}
	if err != nil {
		w.logger.Error().Err(err).Str("media", string(req.MediaKind)).Str("state", string(m.current)).Msg("preview failed")
		return Outcome{}, err
	}
	if out.Cancelled {
		w.logger.Info().Msg("preview cancelled at credential prompt")
	}
	return out, nil
}

func (w *Workflow) acquireImage(ctx context.Context, m *machine, req Request) (Outcome, error) {
	if err := m.to(ctx, StateGenerating); err != nil {
		return Outcome{}, err
	}
	handle, err := w.images.Generate(ctx, image.GenerateRequest{Prompt: req.Prompt, AspectRatio: req.AspectRatio})
	if err != nil {
		return Outcome{}, m.fail(ctx, err)
	}
	if err := m.to(ctx, StateReady); err != nil {
		return Outcome{}, err
	}
	return Outcome{Handle: handle}, nil
}

func (w *Workflow) acquireVideo(ctx context.Context, m *machine, req Request) (Outcome, error) {
	if err := m.to(ctx, StateCredentialCheck); err != nil {
		return Outcome{}, err
	}
	proceed, err := w.checkCredentials(ctx, req.Locale)
	if err != nil {
		return Outcome{}, m.fail(ctx, err)
	}
	if !proceed {
		if err := m.to(ctx, StateAborted); err != nil {
			return Outcome{}, err
		}
		return Outcome{Cancelled: true}, nil
	}

	apiKey, err := w.credentials.APIKey(ctx)
	if err != nil {
		return Outcome{}, m.fail(ctx, fmt.Errorf("%w: %w", domain.ErrCredentialCheck, err))
	}
	op, err := w.videos.Submit(ctx, video.SubmitRequest{
		Prompt:      req.Prompt,
		AspectRatio: video.AspectRatioFor(req.AspectRatio),
		APIKey:      apiKey,
	})
	if err != nil {
		return Outcome{}, m.fail(ctx, fmt.Errorf("%w: %w", domain.ErrVideoGenerationFailed, err))
	}
	if err := m.to(ctx, StateJobSubmitted); err != nil {
		return Outcome{}, err
	}
	if err := m.to(ctx, StatePolling); err != nil {
		return Outcome{}, err
	}
	op, err = w.waitDone(ctx, op, apiKey)
	if err != nil {
		return Outcome{}, m.fail(ctx, err)
	}
	if op.URI == "" {
		if op.ErrMessage != "" {
			return Outcome{}, m.fail(ctx, fmt.Errorf("%w: %s", domain.ErrVideoGenerationFailed, op.ErrMessage))
		}
		return Outcome{}, m.fail(ctx, domain.ErrVideoGenerationFailed)
	}
	if err := m.to(ctx, StateCompleted); err != nil {
		return Outcome{}, err
	}

	if err := m.to(ctx, StateDownloading); err != nil {
		return Outcome{}, err
	}
	media, err := w.videos.Download(ctx, op.URI, apiKey)
	if err != nil {
		return Outcome{}, m.fail(ctx, err)
	}
	handle, err := w.store(ctx, media)
	if err != nil {
		return Outcome{}, m.fail(ctx, fmt.Errorf("%w: %w", domain.ErrVideoDownloadFailed, err))
	}
	if err := m.to(ctx, StateReady); err != nil {
		return Outcome{}, err
	}
	return Outcome{Handle: handle}, nil
}

// checkCredentials returns false when the user declines to pick a key.
func (w *Workflow) checkCredentials(ctx context.Context, locale string) (bool, error) {
	selected, err := w.gate.HasSelectedKey(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCredentialCheck, err)
	}
	if selected {
		return true, nil
	}
	if w.confirmer == nil {
		return false, nil
	}
	if locale == "" {
		locale = i18n.LocaleVietnamese
	}
	accepted, err := w.confirmer.Confirm(ctx, i18n.Text(locale, i18n.MsgConfirmVideoKey))
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCredentialCheck, err)
	}
	if !accepted {
		return false, nil
	}
	// The selection may not be visible yet; proceed without re-checking.
	if err := w.gate.OpenSelectKey(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCredentialCheck, err)
	}
	return true, nil
}

// waitDone re-fetches op every poll interval until it is done, at most
// maxPolls times.
func (w *Workflow) waitDone(ctx context.Context, op *video.Operation, apiKey string) (*video.Operation, error) {
	for polls := 0; !op.Done; polls++ {
		if polls >= w.maxPolls {
			return nil, fmt.Errorf("%w after %d polls", domain.ErrVideoPollTimeout, polls)
		}
		if err := w.sleep(ctx, w.pollInterval); err != nil {
			return nil, err
		}
		next, err := w.videos.Poll(ctx, op, apiKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVideoGenerationFailed, err)
		}
		if next == nil {
			return nil, fmt.Errorf("%w: empty operation", domain.ErrVideoGenerationFailed)
		}
		w.logger.Debug().Str("operation", next.Name).Int("poll", polls+1).Bool("done", next.Done).Msg("video operation polled")
		op = next
	}
	return op, nil
}

func (w *Workflow) store(ctx context.Context, media video.Media) (domain.MediaHandle, error) {
	if w.sink == nil {
		return domain.MediaHandle{URL: image.DataURI(media.MIMEType, media.Data), MIMEType: media.MIMEType, Kind: domain.MediaVideo}, nil
	}
	handle, err := w.sink.Store(ctx, media.Data, media.MIMEType)
	if err != nil {
		return domain.MediaHandle{}, err
	}
	handle.Kind = domain.MediaVideo
	if handle.MIMEType == "" {
		handle.MIMEType = media.MIMEType
	}
	return handle, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
