package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"promptmaster/internal/domain"
	"promptmaster/internal/providers/gemini"
)

const maxVideoBytes = 256 << 20

type VeoOptions struct {
	Factory    *gemini.Factory
	Model      string
	Resolution string
	Logger     *zerolog.Logger
}

// VeoBackend drives Veo through the genai SDK. Clients come from the factory
// keyed by the API key of each call.
type VeoBackend struct {
	factory    *gemini.Factory
	model      string
	resolution string
	maxBytes   int64
	logger     zerolog.Logger
}

func NewVeoBackend(opts VeoOptions) (*VeoBackend, error) {
	if opts.Factory == nil {
		return nil, errors.New("gemini client factory is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = gemini.DefaultVideoModel
	}
	resolution := strings.TrimSpace(opts.Resolution)
	if resolution == "" {
		resolution = DefaultResolution
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &VeoBackend{
		factory:    opts.Factory,
		model:      model,
		resolution: resolution,
		maxBytes:   maxVideoBytes,
		logger:     logger.With().Str("component", "veo").Str("model", model).Logger(),
	}, nil
}

func (v *VeoBackend) Submit(ctx context.Context, req SubmitRequest) (*Operation, error) {
	client, err := v.factory.Client(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	op, err := client.Models.GenerateVideos(ctx, v.model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
		Resolution:     v.resolution,
	})
	if err != nil {
		return nil, remoteError("submit", err)
	}
	v.logger.Info().Str("operation", op.Name).Str("aspect_ratio", req.AspectRatio).Msg("video operation started")
	return fromOperation(op), nil
}

func (v *VeoBackend) Poll(ctx context.Context, op *Operation, apiKey string) (*Operation, error) {
	if op == nil || strings.TrimSpace(op.Name) == "" {
		return nil, fmt.Errorf("%w: operation has no name", domain.ErrVideoGenerationFailed)
	}
	client, err := v.factory.Client(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	next, err := client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Name}, nil)
	if err != nil {
		return nil, remoteError("poll", err)
	}
	return fromOperation(next), nil
}

// Download fetches the finished video, authenticating with the key query
// parameter the file service expects.
func (v *VeoBackend) Download(ctx context.Context, uri, apiKey string) (Media, error) {
	target, err := withKey(uri, apiKey)
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", domain.ErrVideoDownloadFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", domain.ErrVideoDownloadFailed, err)
	}
	resp, err := v.factory.HTTPClient().Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", domain.ErrVideoDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.logger.Warn().Int("status", resp.StatusCode).Msg("video download rejected")
		return Media{}, fmt.Errorf("%w: status %d", domain.ErrVideoDownloadFailed, resp.StatusCode)
	}
	// One byte past the limit tells an oversized video from one that fits.
	data, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBytes+1))
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", domain.ErrVideoDownloadFailed, err)
	}
	if int64(len(data)) > v.maxBytes {
		v.logger.Warn().Int64("limit", v.maxBytes).Msg("video download too large")
		return Media{}, fmt.Errorf("%w: video exceeds %d bytes", domain.ErrVideoDownloadFailed, v.maxBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = defaultMIMEType
	}
	v.logger.Debug().Int("bytes", len(data)).Msg("video downloaded")
	return Media{Data: data, MIMEType: mime}, nil
}

func withKey(uri, apiKey string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func fromOperation(op *genai.GenerateVideosOperation) *Operation {
	if op == nil {
		return &Operation{}
	}
	out := &Operation{Name: op.Name, Done: op.Done}
	if op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv != nil && gv.Video != nil && gv.Video.URI != "" {
				out.URI = gv.Video.URI
				break
			}
		}
	}
	if msg, ok := op.Error["message"].(string); ok {
		out.ErrMessage = msg
	}
	return out
}

func remoteError(stage string, err error) error {
	if gemini.IsQuotaError(err) {
		return fmt.Errorf("veo %s: %w: %w", stage, domain.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("veo %s: %w", stage, err)
}

var _ Backend = (*VeoBackend)(nil)
