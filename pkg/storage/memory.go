package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps the latest snapshot per observation in a map. Safe for
// concurrent use. With a TTL configured, a background goroutine drops stale
// solutions; multi-instance deployments should use RedisStore instead.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	ttl       time.Duration

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates an in-memory snapshot store with no expiry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
	}
}

// NewMemoryStoreWithTTL creates an in-memory store that drops snapshots older
// than ttl (by SolvedAt). Callers must Stop() the store to release the
// cleanup goroutine. A non-positive cleanupInterval defaults to one minute.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		snapshots:     make(map[string]Snapshot),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the cleanup goroutine. Safe to call repeatedly, and a
// no-op on a store without TTL.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for observation, snapshot := range s.snapshots {
		if now.Sub(snapshot.SolvedAt) > s.ttl {
			delete(s.snapshots, observation)
		}
	}
}

// Put stores a snapshot under its observation name, replacing any previous
// solution for that observation.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if snapshot.Observation == "" {
		return fmt.Errorf("snapshot observation cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.Observation] = snapshot
	return nil
}

// GetLatest returns the stored snapshot for an observation, with found=false
// when none exists.
func (s *MemoryStore) GetLatest(ctx context.Context, observation string) (Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, found := s.snapshots[observation]
	return snapshot, found, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Delete removes an observation's snapshot, reporting whether one existed.
func (s *MemoryStore) Delete(observation string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.snapshots[observation]
	delete(s.snapshots, observation)
	return existed
}
