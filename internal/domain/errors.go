package domain

import "errors"

var (
	ErrInvalidSettings       = errors.New("invalid settings")
	ErrRefinementFailure     = errors.New("refinement failure")
	ErrNoImageProduced       = errors.New("no image generated")
	ErrVideoGenerationFailed = errors.New("video generation failed to return a uri")
	ErrVideoDownloadFailed   = errors.New("failed to download video bytes")
	ErrVideoPollTimeout      = errors.New("timed out waiting for video")
	ErrCredentialCheck       = errors.New("credential check failed")
	ErrQuotaExceeded         = errors.New("quota exceeded")
	ErrBusy                  = errors.New("operation already in progress")
	ErrNoRefinedResult       = errors.New("no refined result to preview")
	ErrNotFound              = errors.New("not found")
)
