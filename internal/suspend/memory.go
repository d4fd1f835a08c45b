package suspend

import (
	"context"
	"sync"
	"time"
)

// MemorySnapshots is the process-local snapshot store. Suitable for tests and
// for running without a database; contents are lost on restart.
type MemorySnapshots struct {
	mu    sync.Mutex
	roles map[snapshotKey][]string
}

type snapshotKey struct {
	userID  string
	guildID string
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{roles: make(map[snapshotKey][]string)}
}

func (s *MemorySnapshots) Put(ctx context.Context, userID, guildID string, roleIDs []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]string, len(roleIDs))
	copy(copied, roleIDs)
	s.roles[snapshotKey{userID, guildID}] = copied
	return nil
}

func (s *MemorySnapshots) Take(ctx context.Context, userID, guildID string) ([]string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapshotKey{userID, guildID}
	roles, ok := s.roles[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.roles, key)
	return roles, true, nil
}

// MemoryRegistry is the process-local suspension registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	records map[string]Suspension
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]Suspension)}
}

func (r *MemoryRegistry) Put(ctx context.Context, s Suspension) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.UserID] = s
	return nil
}

func (r *MemoryRegistry) Expired(ctx context.Context, now time.Time) ([]Suspension, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Suspension
	for _, rec := range r.records {
		if !rec.ExpiresAt.After(now) {
			due = append(due, rec)
		}
	}
	return due, nil
}

func (r *MemoryRegistry) Remove(ctx context.Context, userID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, userID)
	return nil
}
