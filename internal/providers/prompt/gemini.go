package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"promptmaster/internal/domain"
	"promptmaster/internal/providers/gemini"
)

// Refiner turns a raw idea plus settings into a structured prompt.
type Refiner interface {
	Refine(ctx context.Context, settings domain.GenerationSettings) (domain.RefinedResult, error)
}

type GeminiOptions struct {
	Client *genai.Client
	Model  string
	// ExplanationLanguage names the language of the explanation field.
	ExplanationLanguage string
	Logger              *zerolog.Logger
}

type GeminiRefiner struct {
	models      *genai.Models
	model       string
	instruction string
	logger      zerolog.Logger
}

func NewGeminiRefiner(opts GeminiOptions) (*GeminiRefiner, error) {
	if opts.Client == nil {
		return nil, errors.New("genai client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = gemini.DefaultRefineModel
	}
	lang := strings.TrimSpace(opts.ExplanationLanguage)
	if lang == "" {
		lang = "Vietnamese"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &GeminiRefiner{
		models:      opts.Client.Models,
		model:       model,
		instruction: systemInstruction(lang),
		logger:      logger.With().Str("component", "refiner").Str("model", model).Logger(),
	}, nil
}

func (g *GeminiRefiner) Refine(ctx context.Context, settings domain.GenerationSettings) (domain.RefinedResult, error) {
	if strings.TrimSpace(settings.RawIdea) == "" {
		return domain.RefinedResult{}, fmt.Errorf("%w: raw idea is required", domain.ErrInvalidSettings)
	}
	contents := []*genai.Content{genai.NewContentFromText(userContent(settings), genai.RoleUser)}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    refinedSchema(),
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("generate content failed")
		return domain.RefinedResult{}, refinementError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.logger.Warn().Msg("empty response text")
		return domain.RefinedResult{}, fmt.Errorf("%w: no response text", domain.ErrRefinementFailure)
	}
	result, err := parseRefined(text)
	if err != nil {
		g.logger.Warn().Err(err).Int("bytes", len(text)).Msg("unparseable response")
		return domain.RefinedResult{}, fmt.Errorf("%w: %v", domain.ErrRefinementFailure, err)
	}
	g.logger.Debug().Str("title", result.Title).Msg("prompt refined")
	return result, nil
}

func refinementError(err error) error {
	if gemini.IsQuotaError(err) {
		return fmt.Errorf("%w: %w: %v", domain.ErrRefinementFailure, domain.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrRefinementFailure, err)
}

func refinedSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":          str(),
			"prompt":         str(),
			"negativePrompt": str(),
			"explanation":    str(),
		},
		PropertyOrdering: []string{"title", "prompt", "negativePrompt", "explanation"},
		Required:         []string{"title", "prompt", "negativePrompt", "explanation"},
	}
}

var _ Refiner = (*GeminiRefiner)(nil)
