package studio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/providers/prompt"
)

type ManagerOptions struct {
	Refiner       prompt.Refiner
	Previewer     Previewer
	DefaultLocale string
	Logger        *zerolog.Logger
}

// Manager keeps sessions in memory, keyed by uuid.
type Manager struct {
	refiner   prompt.Refiner
	previewer Previewer
	locale    string
	logger    zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Refiner == nil {
		return nil, errors.New("refiner is required")
	}
	if opts.Previewer == nil {
		return nil, errors.New("previewer is required")
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	locale := opts.DefaultLocale
	if locale == "" {
		locale = i18n.LocaleVietnamese
	}
	return &Manager{
		refiner:   opts.Refiner,
		previewer: opts.Previewer,
		locale:    i18n.Normalize(locale),
		logger:    logger.With().Str("component", "studio").Logger(),
		sessions:  make(map[string]*Session),
	}, nil
}

// Create starts a session with settings. An empty locale uses the default.
func (m *Manager) Create(settings domain.GenerationSettings, locale string) *Session {
	if locale == "" {
		locale = m.locale
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		refiner:   m.refiner,
		previewer: m.previewer,
		logger:    m.logger.With().Str("session_id", id).Logger(),
		locale:    i18n.Normalize(locale),
		settings:  settings,
		updatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Prune drops idle sessions last touched before cutoff and returns how many
// were removed.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		snap := s.Snapshot()
		if snap.Refining || snap.Previewing || !snap.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
