package prompt

import (
	"fmt"
	"strings"

	"promptmaster/internal/domain"
)

const systemInstructionTemplate = `You are a world-class prompt engineer for generative media models (Midjourney, Stable Diffusion, DALL-E, Veo).
Turn rough ideas into highly detailed, professional, effective English prompts.

Analyse the idea and restructure it using these categories:
1. Subject: the main subject in precise detail (clothing, expression, pose, materials, anatomy).
2. Environment: setting, background, space, depth of field, bokeh.
3. Lighting & Atmosphere: volumetric, rim light, cinematic or natural light, mood, smoke, fog, time of day.
4. Style & Medium: a concrete art movement (Cyberpunk, Baroque, Ukiyo-e, Bauhaus), influential artists or directors where fitting (Greg Rutkowski, Alphonse Mucha, Wes Anderson, Roger Deakins cinematography), tools and media (Unreal Engine 5, Octane Render, oil paint, charcoal).
5. Camera & Technical: the camera angle the user asked for (low angle, high angle, Dutch angle, eye level, bird's-eye view), lens and focal length (14mm wide angle, 85mm telephoto, 100mm macro, fish-eye), quality tokens (8k, 4k, highly detailed, photorealistic, ray tracing, HDR), composition (rule of thirds, golden ratio, symmetry).

Negative prompt strategy (context aware), chosen from the requested Style and Target Media:
- Photorealistic or Cinematic styles must avoid: '%s'.
- Anime, Digital Art or Oil Painting styles must avoid: '%s'.
- VIDEO media must always add: '%s'.
- Always include the common defects: '%s'.

Reply with JSON only:
{
  "title": "a short title for the prompt",
  "prompt": "the complete English prompt, either a flowing narrative or an optimised keyword list depending on the style; it MUST contain the camera keywords (angle, lens) and the style reference",
  "negativePrompt": "the English negative prompt built strictly with the context-aware strategy above",
  "explanation": "a short explanation written in %s of why these camera settings and this style give the best visual result"
}`

const (
	negativeNonPhoto = "cartoon, illustration, 3d render, painting, anime, sketch, drawing, cel shading, vector art, graphic design, 2d"
	negativePhoto    = "photorealistic, realism, photo, live action, 35mm photograph, 4k video"
	negativeMotion   = "static, still image, motionless, frozen, distorted motion, morphing, jittery, blurry motion, low fps"
	negativeCommon   = "bad anatomy, extra fingers, missing limbs, floating limbs, disconnected limbs, text, watermark, signature, username, low quality, jpeg artifacts, ugly, deformed, noisy, mutation"
)

func systemInstruction(explanationLanguage string) string {
	return fmt.Sprintf(systemInstructionTemplate, negativeNonPhoto, negativePhoto, negativeMotion, negativeCommon, explanationLanguage)
}

// userContent renders every settings field. Empty optional fields get the
// placeholders the model was instructed with.
func userContent(s domain.GenerationSettings) string {
	sb := &strings.Builder{}
	sb.WriteString("Input Data:\n")
	fmt.Fprintf(sb, "- Raw Idea: %q\n", strings.TrimSpace(s.RawIdea))
	fmt.Fprintf(sb, "- Target Media: %s\n", s.MediaKind)
	fmt.Fprintf(sb, "- Style: %s\n", s.Style)
	fmt.Fprintf(sb, "- Sub-Style/Influence: %s\n", orDefault(s.SubStyle, "None"))
	fmt.Fprintf(sb, "- Camera Angle: %s\n", s.CameraAngle)
	fmt.Fprintf(sb, "- Lighting: %s\n", orDefault(s.Lighting, "Auto"))
	fmt.Fprintf(sb, "- Mood: %s\n", orDefault(s.Mood, "Auto"))
	fmt.Fprintf(sb, "- Aspect Ratio: %s\n", s.AspectRatio)
	fmt.Fprintf(sb, "- Custom Negative: %s\n", orDefault(s.NegativePrompt, "None"))
	return sb.String()
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
