package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/metrics"
)

type record struct {
	createdAt  time.Time
	lastAccess time.Time
	turns      []Turn
}

// MemoryStore is a process-local Store bounded by an LRU cap and an idle TTL.
// When a Journal is attached, sessions unseen in memory are rehydrated from it and
// every appended turn is recorded there as well.
type MemoryStore struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *record]
	journal *Journal
}

// MemoryOptions configures NewMemoryStore. Zero values mean unbounded.
type MemoryOptions struct {
	MaxSessions int
	TTL         time.Duration
	Journal     *Journal
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	size := opts.MaxSessions
	if size < 0 {
		size = 0
	}
	onEvict := func(id string, _ *record) {
		metrics.Sessions.Dec()
		logger.L.Debug("session evicted", "session_id", id)
	}
	return &MemoryStore{
		cache:   expirable.NewLRU[string, *record](size, onEvict, opts.TTL),
		journal: opts.Journal,
	}
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrEmptyID
	}

	s.mu.Lock()
	if r, ok := s.touch(id); ok {
		out := snapshot(id, r)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	// Journal reads happen outside the lock; the second check below keeps creation unique.
	restored := s.restore(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.touch(id); ok {
		return snapshot(id, r), nil
	}
	r := s.create(id, restored)
	return snapshot(id, r), nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	r, ok := s.touch(id)
	if !ok {
		// Evicted between GetOrCreate and Append: start over from what was recorded.
		s.mu.Unlock()
		restored := s.restore(ctx, id)
		s.mu.Lock()
		if r, ok = s.touch(id); !ok {
			r = s.create(id, restored)
		}
	}
	r.turns = append(r.turns, turns...)
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Record(ctx, id, turns...); err != nil {
			logger.L.Error("failed to record turns in journal; keeping memory only", "session_id", id, "error", err)
		}
	}
	return nil
}

// Len reports how many sessions are currently held in memory.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Close drops every in-memory session and closes the attached journal, if any.
// golang-lru v2.0.7 gives no way to stop the TTL purge goroutine, so after Close it
// only ticks over an empty cache.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// touch must be called with s.mu held. Re-adding refreshes both recency and the TTL.
func (s *MemoryStore) touch(id string) (*record, bool) {
	r, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.lastAccess = time.Now().UTC()
	s.cache.Add(id, r)
	return r, true
}

// create must be called with s.mu held.
func (s *MemoryStore) create(id string, turns []Turn) *record {
	now := time.Now().UTC()
	r := &record{createdAt: now, lastAccess: now, turns: turns}
	if len(turns) > 0 {
		r.createdAt = turns[0].Timestamp
	}
	s.cache.Add(id, r)
	metrics.Sessions.Inc()
	logger.L.Debug("session created", "session_id", id, "restored_turns", len(turns))
	return r
}

func (s *MemoryStore) restore(ctx context.Context, id string) []Turn {
	if s.journal == nil {
		return nil
	}
	turns, err := s.journal.Load(ctx, id)
	if err != nil {
		logger.L.Warn("failed to load session from journal; starting empty", "session_id", id, "error", err)
		return nil
	}
	return turns
}

func snapshot(id string, r *record) Session {
	return Session{
		ID:         id,
		CreatedAt:  r.createdAt,
		LastAccess: r.lastAccess,
		Turns:      copyTurns(r.turns),
	}
}
