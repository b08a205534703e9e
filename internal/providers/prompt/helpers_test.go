package prompt

import (
	"strings"
	"testing"

	"promptmaster/internal/domain"
)

func TestParseRefinedStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"title\":\"T\",\"prompt\":\"P\",\"negativePrompt\":\"N\",\"explanation\":\"E\"}\n```"
	got, err := parseRefined(raw)
	if err != nil {
		t.Fatalf("parseRefined returned error: %v", err)
	}
	want := domain.RefinedResult{Title: "T", Prompt: "P", NegativePrompt: "N", Explanation: "E"}
	if got != want {
		t.Fatalf("parseRefined() = %+v, want %+v", got, want)
	}
}

func TestExtractJSONFragment(t *testing.T) {
	if got := extractJSONFragment("Here you go: {\"a\":1} thanks"); got != `{"a":1}` {
		t.Fatalf("extractJSONFragment = %q", got)
	}
	if got := extractJSONFragment("   "); got != "" {
		t.Fatalf("extractJSONFragment(blank) = %q", got)
	}
}

func TestUserContentPlaceholders(t *testing.T) {
	s := domain.DefaultSettings().WithStyle(domain.StyleCinematic)
	s.RawIdea = "rainy alley"
	s.MediaKind = domain.MediaVideo
	s.Mood = "Gloomy"
	got := userContent(s)
	for _, line := range []string{
		`- Raw Idea: "rainy alley"`,
		"- Target Media: VIDEO",
		"- Style: Cinematic",
		"- Sub-Style/Influence: Wes Anderson",
		"- Camera Angle: Auto",
		"- Lighting: Auto",
		"- Mood: Gloomy",
		"- Aspect Ratio: 1:1",
		"- Custom Negative: None",
	} {
		if !strings.Contains(got, line) {
			t.Fatalf("user content missing %q:\n%s", line, got)
		}
	}
}

func TestSystemInstructionNegativeRules(t *testing.T) {
	got := systemInstruction("English")
	for _, fragment := range []string{negativeMotion, negativeCommon, negativePhoto, negativeNonPhoto, "written in English"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("system instruction missing %q", fragment)
		}
	}
}
