package prompt

import (
	"encoding/json"
	"errors"
	"strings"

	"promptmaster/internal/domain"
)

// refinedPayload uses pointers so a missing key is distinguishable from an
// empty value.
type refinedPayload struct {
	Title          *string `json:"title"`
	Prompt         *string `json:"prompt"`
	NegativePrompt *string `json:"negativePrompt"`
	Explanation    *string `json:"explanation"`
}

func (p refinedPayload) result() (domain.RefinedResult, error) {
	if p.Title == nil || p.Prompt == nil || p.NegativePrompt == nil || p.Explanation == nil {
		return domain.RefinedResult{}, errors.New("payload is missing required keys")
	}
	if strings.TrimSpace(*p.Prompt) == "" {
		return domain.RefinedResult{}, errors.New("payload has an empty prompt")
	}
	return domain.RefinedResult{
		Title:          *p.Title,
		Prompt:         *p.Prompt,
		NegativePrompt: *p.NegativePrompt,
		Explanation:    *p.Explanation,
	}, nil
}

// parseRefined decodes model text into a RefinedResult.
func parseRefined(raw string) (domain.RefinedResult, error) {
	payload, err := parseModelPayload[refinedPayload](raw)
	if err != nil {
		return domain.RefinedResult{}, err
	}
	return payload.result()
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
