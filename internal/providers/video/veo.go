package video

import (
	"context"

	"promptmaster/internal/domain"
)

// SubmitRequest starts one Veo generation. AspectRatio must already be one of
// the two video ratios; see domain.VideoAspectRatio.
type SubmitRequest struct {
	Prompt      string
	AspectRatio string
	APIKey      string
}

// Operation is the provider-neutral view of a long-running generation.
type Operation struct {
	Name string
	Done bool
	// URI of the first generated video, set once Done.
	URI string
	// ErrMessage carries the remote error when the operation finished without a video.
	ErrMessage string
}

// Backend is the remote video service. Every call takes the key resolved for
// the current attempt so a freshly selected key applies immediately.
type Backend interface {
	Submit(ctx context.Context, req SubmitRequest) (*Operation, error)
	Poll(ctx context.Context, op *Operation, apiKey string) (*Operation, error)
	Download(ctx context.Context, uri, apiKey string) (Media, error)
}

// Media is a downloaded video payload.
type Media struct {
	Data     []byte
	MIMEType string
}

const (
	DefaultResolution = "720p"
	defaultMIMEType   = "video/mp4"
)

// AspectRatioFor maps any of the five picture ratios onto a video ratio.
func AspectRatioFor(r domain.AspectRatio) string {
	return string(domain.VideoAspectRatio(r))
}
