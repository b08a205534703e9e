package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"promptmaster/internal/infra"
	"promptmaster/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
	// ProviderVeo holds the paid key the user selected for video generation.
	ProviderVeo = "veo"
)

var ErrEmptyToken = errors.New("api key is required")

// TokenStore persists API keys by provider.
type TokenStore interface {
	Token(ctx context.Context, provider string) (string, error)
	SetToken(ctx context.Context, provider, token string) error
}

// Store keeps keys in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens)
	return err
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	raw, err := json.Marshal(map[string]any{"selected_at": time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func (s *Store) Clear(ctx context.Context, provider string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

// MemoryStore is the TokenStore used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) Token(_ context.Context, provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[provider], nil
}

func (m *MemoryStore) SetToken(_ context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	m.tokens[provider] = token
	m.mu.Unlock()
	return nil
}

var (
	_ TokenStore = (*Store)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)
