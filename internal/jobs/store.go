// Package jobs runs preview acquisitions in the background for the HTTP API
// and keeps their records for polling.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"promptmaster/internal/domain"
)

// Job states beyond the preview states.
const (
	StateQueued     = "queued"
	StateSuperseded = "superseded"
)

// Job is the pollable record of one preview run.
type Job struct {
	ID         string              `json:"id"`
	SessionID  string              `json:"sessionId"`
	Generation uint64              `json:"generation"`
	State      string              `json:"state"`
	MediaKind  domain.MediaKind    `json:"mediaKind"`
	Handle     *domain.MediaHandle `json:"handle,omitempty"`
	Error      string              `json:"error,omitempty"`
	Cancelled  bool                `json:"cancelled"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Store keeps job records and the per-session generation counter.
type Store interface {
	Save(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	NextGeneration(ctx context.Context, sessionID string) (uint64, error)
	CurrentGeneration(ctx context.Context, sessionID string) (uint64, error)
}

// MemoryStore is the single-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
	gens map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job), gens: make(map[string]uint64)}
}

func (s *MemoryStore) Save(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

func (s *MemoryStore) NextGeneration(ctx context.Context, sessionID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[sessionID]++
	return s.gens[sessionID], nil
}

func (s *MemoryStore) CurrentGeneration(ctx context.Context, sessionID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[sessionID], nil
}

var _ Store = (*MemoryStore)(nil)
