package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryStatus keeps statuses in process and logs every transition. It is
// used when no Redis URL is configured.
type MemoryStatus struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{jobs: make(map[string]Status)}
}

func (s *MemoryStatus) Set(_ context.Context, jobID string, st Status) error {
	s.mu.Lock()
	s.jobs[jobID] = st
	s.mu.Unlock()
	ev := log.Info()
	if st.Status == StateFailed {
		ev = log.Warn()
	}
	ev.Str("job", jobID).Str("status", st.Status).Str("message", st.Message).Msg("batch job status")
	return nil
}

func (s *MemoryStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	return st, ok, nil
}

func (s *MemoryStatus) Close() error { return nil }

// Open returns a RedisStatus for a non-empty URL, otherwise a MemoryStatus.
func Open(redisURL string) (StatusStore, error) {
	if redisURL == "" {
		return NewMemoryStatus(), nil
	}
	return NewRedisStatus(redisURL)
}
