package cache

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	fails       int
	windowEnd   time.Time
	lockedUntil time.Time
}

// MemoryLoginGuard is the process-local LoginGuard.
type MemoryLoginGuard struct {
	mu          sync.Mutex
	entries     map[string]*attempt
	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
}

func NewMemoryLoginGuard(maxAttempts int, lockFor time.Duration) *MemoryLoginGuard {
	return &MemoryLoginGuard{entries: map[string]*attempt{}, maxAttempts: maxAttempts, lockFor: lockFor, now: time.Now}
}

func (g *MemoryLoginGuard) Locked(_ context.Context, email string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[email]
	if !ok {
		return 0, nil
	}
	if left := e.lockedUntil.Sub(g.now()); left > 0 {
		return left, nil
	}
	return 0, nil
}

func (g *MemoryLoginGuard) Fail(_ context.Context, email string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	e, ok := g.entries[email]
	if !ok || now.After(e.windowEnd) {
		e = &attempt{windowEnd: now.Add(g.lockFor)}
		g.entries[email] = e
	}
	e.fails++
	if e.fails >= g.maxAttempts {
		e.fails = 0
		e.lockedUntil = now.Add(g.lockFor)
		e.windowEnd = e.lockedUntil
		return true, nil
	}
	return false, nil
}

func (g *MemoryLoginGuard) Reset(_ context.Context, email string) error {
	g.mu.Lock()
	delete(g.entries, email)
	g.mu.Unlock()
	return nil
}

type memToken struct {
	userID  string
	expires time.Time
}

// MemoryTokenStore is the process-local TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memToken
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]memToken{}, now: time.Now}
}

func (s *MemoryTokenStore) Put(_ context.Context, digest, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, t := range s.tokens {
		if now.After(t.expires) {
			delete(s.tokens, k)
		}
	}
	s.tokens[digest] = memToken{userID: userID, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Take(_ context.Context, digest string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[digest]
	if !ok {
		return "", false, nil
	}
	delete(s.tokens, digest)
	if s.now().After(t.expires) {
		return "", false, nil
	}
	return t.userID, true, nil
}
