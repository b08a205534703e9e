package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// StyleOption pairs a style with its ordered sub-styles.
type StyleOption struct {
	Style     Style    `json:"style"`
	SubStyles []string `json:"subStyles"`
}

// Catalog lists every option a client can choose from.
type Catalog struct {
	MediaKinds   []MediaKind        `json:"mediaTypes"`
	Styles       []StyleOption      `json:"styles"`
	AspectRatios []AspectRatio      `json:"aspectRatios"`
	CameraAngles []CameraAngle      `json:"cameraAngles"`
	Defaults     GenerationSettings `json:"defaults"`
}

func NewCatalog() Catalog {
	c := Catalog{
		MediaKinds:   append([]MediaKind(nil), mediaKinds...),
		AspectRatios: append([]AspectRatio(nil), aspectRatios...),
		CameraAngles: append([]CameraAngle(nil), cameraAngles...),
		Defaults:     DefaultSettings(),
	}
	for _, s := range styles {
		c.Styles = append(c.Styles, StyleOption{Style: s, SubStyles: SubStyles(s)})
	}
	return c
}

func ParseMediaKind(v string) (MediaKind, error) {
	return parseOption(mediaKinds, v, "media type")
}

func ParseStyle(v string) (Style, error) {
	return parseOption(styles, v, "style")
}

func ParseAspectRatio(v string) (AspectRatio, error) {
	return parseOption(aspectRatios, v, "aspect ratio")
}

func ParseCameraAngle(v string) (CameraAngle, error) {
	return parseOption(cameraAngles, v, "camera angle")
}

// ParseSubStyle resolves v against the sub-styles of style, ignoring case.
func ParseSubStyle(style Style, v string) (string, error) {
	return parseOption(subStyles[style], v, "sub-style")
}

func parseOption[T ~string](options []T, v, what string) (T, error) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(v))
	for _, opt := range options {
		if fold.String(string(opt)) == want {
			return opt, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", ErrInvalidSettings, what, v)
}
