package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Picker asks the user for a key, the server-side counterpart of an
// interactive key selection dialog.
type Picker interface {
	PickKey(ctx context.Context) (string, error)
}

type PickerFunc func(ctx context.Context) (string, error)

func (f PickerFunc) PickKey(ctx context.Context) (string, error) {
	return f(ctx)
}

// ErrNoPicker is returned by OpenSelectKey when no picker was supplied.
var ErrNoPicker = errors.New("no key picker configured")

// Selector tracks the paid key selected for video generation. It serves as
// both the credential gate and the credential provider of the preview
// workflow.
type Selector struct {
	tokens     TokenStore
	picker     Picker
	defaultKey string
	scope      string
}

func NewSelector(tokens TokenStore, picker Picker, defaultKey string) *Selector {
	return &Selector{tokens: tokens, picker: picker, defaultKey: strings.TrimSpace(defaultKey)}
}

// WithScope returns a copy whose selection belongs to scope alone, so one
// caller's paid key is never visible to another. An empty scope is the
// process-wide selection used by the terminal client.
func (s *Selector) WithScope(scope string) *Selector {
	cp := *s
	cp.scope = strings.TrimSpace(scope)
	return &cp
}

// provider is the token store key of the selection.
func (s *Selector) provider() string {
	if s.scope == "" {
		return ProviderVeo
	}
	return ProviderVeo + ":" + s.scope
}

// WithPicker returns a copy that asks picker for new keys.
func (s *Selector) WithPicker(picker Picker) *Selector {
	cp := *s
	cp.picker = picker
	return &cp
}

func (s *Selector) HasSelectedKey(ctx context.Context) (bool, error) {
	key, err := s.tokens.Token(ctx, s.provider())
	if err != nil {
		return false, fmt.Errorf("load selected key: %w", err)
	}
	return key != "", nil
}

// OpenSelectKey asks the picker for a key and stores it. An empty answer
// leaves the selection unchanged.
func (s *Selector) OpenSelectKey(ctx context.Context) error {
	if s.picker == nil {
		return ErrNoPicker
	}
	key, err := s.picker.PickKey(ctx)
	if err != nil {
		return fmt.Errorf("pick key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.tokens.SetToken(ctx, s.provider(), key)
}

// APIKey returns the selected paid key, or the service default.
func (s *Selector) APIKey(ctx context.Context) (string, error) {
	key, err := s.tokens.Token(ctx, s.provider())
	if err != nil {
		return "", fmt.Errorf("load selected key: %w", err)
	}
	if key != "" {
		return key, nil
	}
	if s.defaultKey == "" {
		return "", ErrEmptyToken
	}
	return s.defaultKey, nil
}
