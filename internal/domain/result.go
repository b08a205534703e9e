package domain

import "strings"

// RefinedResult is the structured output of one refinement call.
type RefinedResult struct {
	Title          string `json:"title"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt"`
	Explanation    string `json:"explanation"`
}

// MediaHandle references displayable preview bytes: either a data URI or a
// URL served from local storage.
type MediaHandle struct {
	URL      string    `json:"url"`
	MIMEType string    `json:"mimeType,omitempty"`
	Kind     MediaKind `json:"kind"`
}

func (h MediaHandle) IsZero() bool {
	return h.URL == ""
}

// IsDataURI reports whether the handle embeds its bytes inline.
func (h MediaHandle) IsDataURI() bool {
	return strings.HasPrefix(h.URL, "data:")
}
