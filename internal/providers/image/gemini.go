package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"promptmaster/internal/domain"
	"promptmaster/internal/providers/gemini"
)

// GenerateRequest carries a refined prompt and one of the five literal ratios.
type GenerateRequest struct {
	Prompt      string
	AspectRatio domain.AspectRatio
}

// Generator renders a single preview image and returns it as a data URI.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (domain.MediaHandle, error)
}

type GeminiOptions struct {
	Client *genai.Client
	Model  string
	Logger *zerolog.Logger
}

type GeminiGenerator struct {
	models *genai.Models
	model  string
	logger zerolog.Logger
}

func NewGeminiGenerator(opts GeminiOptions) (*GeminiGenerator, error) {
	if opts.Client == nil {
		return nil, errors.New("genai client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = gemini.DefaultImageModel
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &GeminiGenerator{
		models: opts.Client.Models,
		model:  model,
		logger: logger.With().Str("component", "image").Str("model", model).Logger(),
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (domain.MediaHandle, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: string(req.AspectRatio)},
	})
	if err != nil {
		if gemini.IsQuotaError(err) {
			return domain.MediaHandle{}, fmt.Errorf("image: %w: %w", domain.ErrQuotaExceeded, err)
		}
		return domain.MediaHandle{}, fmt.Errorf("image: generate content: %w", err)
	}
	handle, ok := firstInlineImage(resp)
	if !ok {
		g.logger.Warn().Str("aspect_ratio", string(req.AspectRatio)).Msg("response carried no inline image")
		return domain.MediaHandle{}, domain.ErrNoImageProduced
	}
	g.logger.Debug().Str("mime", handle.MIMEType).Msg("image generated")
	return handle, nil
}

// firstInlineImage scans the first candidate's parts in order and encodes
// the first inline blob as a data URI.
func firstInlineImage(resp *genai.GenerateContentResponse) (domain.MediaHandle, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.MediaHandle{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return domain.MediaHandle{
			URL:      DataURI(part.InlineData.MIMEType, part.InlineData.Data),
			MIMEType: part.InlineData.MIMEType,
			Kind:     domain.MediaImage,
		}, true
	}
	return domain.MediaHandle{}, false
}

// DataURI encodes data as data:<mime>;base64,<payload>.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its media type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data uri has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return mime, data, nil
}

var _ Generator = (*GeminiGenerator)(nil)
