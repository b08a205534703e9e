package domain

import (
	"fmt"
	"strings"
)

// MediaKind selects which preview capability is invoked.
type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
)

// Style is the primary artistic direction of a prompt.
type Style string

const (
	StylePhotorealistic Style = "Photorealistic"
	StyleCinematic      Style = "Cinematic"
	StyleAnime          Style = "Anime"
	StyleDigitalArt     Style = "Digital Art"
	StyleOilPainting    Style = "Oil Painting"
	StyleCyberpunk      Style = "Cyberpunk"
	StyleMinimalist     Style = "Minimalist"
	StyleSurreal        Style = "Surreal"
)

// AspectRatio is one of the five literal ratios accepted by the image model.
type AspectRatio string

const (
	RatioSquare    AspectRatio = "1:1"
	RatioLandscape AspectRatio = "16:9"
	RatioPortrait  AspectRatio = "9:16"
	RatioClassic   AspectRatio = "4:3"
	RatioVertical  AspectRatio = "3:4"
)

// CameraAngle hints the framing the refined prompt should request.
type CameraAngle string

const (
	CameraAuto       CameraAngle = "Auto"
	CameraEyeLevel   CameraAngle = "Eye Level"
	CameraLowAngle   CameraAngle = "Low Angle"
	CameraHighAngle  CameraAngle = "High Angle"
	CameraOverhead   CameraAngle = "Overhead / Bird's Eye"
	CameraDutchAngle CameraAngle = "Dutch Angle"
	CameraCloseUp    CameraAngle = "Close Up"
	CameraWideShot   CameraAngle = "Wide Shot"
)

var (
	mediaKinds   = []MediaKind{MediaImage, MediaVideo}
	styles       = []Style{StylePhotorealistic, StyleCinematic, StyleAnime, StyleDigitalArt, StyleOilPainting, StyleCyberpunk, StyleMinimalist, StyleSurreal}
	aspectRatios = []AspectRatio{RatioSquare, RatioLandscape, RatioPortrait, RatioClassic, RatioVertical}
	cameraAngles = []CameraAngle{CameraAuto, CameraEyeLevel, CameraLowAngle, CameraHighAngle, CameraOverhead, CameraDutchAngle, CameraCloseUp, CameraWideShot}
)

var subStyles = map[Style][]string{
	StylePhotorealistic: {"Portrait", "Landscape", "Wildlife", "Street Photography", "Macro", "Architectural", "Editorial", "Black & White"},
	StyleCinematic:      {"Wes Anderson", "Christopher Nolan", "Cyberpunk Noir", "Fantasy Epic", "Documentary", "Vintage Film", "Horror", "Action Blockbuster"},
	StyleAnime:          {"Studio Ghibli", "Makoto Shinkai", "90s Retro", "Kyoto Animation", "Mecha", "Dark Fantasy", "Chibi", "Watercolor"},
	StyleDigitalArt:     {"Concept Art", "Art Nouveau", "Isometric", "Low Poly", "Vaporwave", "Unreal Engine 5", "Vector Art", "3D Render (Octane)"},
	StyleOilPainting:    {"Impressionism", "Baroque", "Renaissance", "Van Gogh", "Cubism", "Classic Portrait", "Ink Wash"},
	StyleCyberpunk:      {"Neon Noir", "Biopunk", "Synthwave", "Post-Apocalyptic", "High Tech Low Life"},
	StyleMinimalist:     {"Bauhaus", "Line Art", "Flat Design", "Scandinavian", "Abstract Geometry"},
	StyleSurreal:        {"Salvador Dali", "Dreamcore", "Weirdcore", "Ethereal", "Double Exposure", "Psychedelic"},
}

// SubStyles returns a copy of the sub-style list for style. Unknown styles have none.
func SubStyles(style Style) []string {
	list := subStyles[style]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// DefaultSubStyle is the first sub-style of style, or "" when it has none.
func DefaultSubStyle(style Style) string {
	if list := subStyles[style]; len(list) > 0 {
		return list[0]
	}
	return ""
}

// VideoAspectRatio maps a requested ratio onto the two ratios the video
// backend supports. Portrait-like ratios become 9:16, everything else 16:9.
func VideoAspectRatio(r AspectRatio) AspectRatio {
	switch r {
	case RatioPortrait, RatioVertical:
		return RatioPortrait
	default:
		return RatioLandscape
	}
}

// GenerationSettings is the per-submission record of user choices.
type GenerationSettings struct {
	RawIdea        string      `json:"rawIdea"`
	MediaKind      MediaKind   `json:"mediaType"`
	Style          Style       `json:"style"`
	SubStyle       string      `json:"subStyle"`
	AspectRatio    AspectRatio `json:"aspectRatio"`
	CameraAngle    CameraAngle `json:"cameraAngle"`
	Lighting       string      `json:"lighting"`
	Mood           string      `json:"mood"`
	NegativePrompt string      `json:"negativePrompt"`
}

// DefaultSettings returns the initial form state.
func DefaultSettings() GenerationSettings {
	return GenerationSettings{
		MediaKind:   MediaImage,
		Style:       StylePhotorealistic,
		SubStyle:    DefaultSubStyle(StylePhotorealistic),
		AspectRatio: RatioSquare,
		CameraAngle: CameraAuto,
	}
}

// WithStyle returns a copy using style, with the sub-style re-derived.
func (s GenerationSettings) WithStyle(style Style) GenerationSettings {
	s.Style = style
	s.SubStyle = DefaultSubStyle(style)
	return s
}

// Validate reports the first violated invariant wrapped in ErrInvalidSettings.
func (s GenerationSettings) Validate() error {
	if strings.TrimSpace(s.RawIdea) == "" {
		return fmt.Errorf("%w: raw idea is required", ErrInvalidSettings)
	}
	if !contains(mediaKinds, s.MediaKind) {
		return fmt.Errorf("%w: unsupported media type %q", ErrInvalidSettings, s.MediaKind)
	}
	if !contains(styles, s.Style) {
		return fmt.Errorf("%w: unsupported style %q", ErrInvalidSettings, s.Style)
	}
	if list := subStyles[s.Style]; s.SubStyle != "" && !contains(list, s.SubStyle) {
		return fmt.Errorf("%w: sub-style %q does not belong to %s", ErrInvalidSettings, s.SubStyle, s.Style)
	}
	if !contains(aspectRatios, s.AspectRatio) {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidSettings, s.AspectRatio)
	}
	if !contains(cameraAngles, s.CameraAngle) {
		return fmt.Errorf("%w: unsupported camera angle %q", ErrInvalidSettings, s.CameraAngle)
	}
	return nil
}

// ValidatePreview checks only the fields a preview reads.
func (s GenerationSettings) ValidatePreview() error {
	if !contains(mediaKinds, s.MediaKind) {
		return fmt.Errorf("%w: unsupported media type %q", ErrInvalidSettings, s.MediaKind)
	}
	if !contains(aspectRatios, s.AspectRatio) {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidSettings, s.AspectRatio)
	}
	return nil
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
