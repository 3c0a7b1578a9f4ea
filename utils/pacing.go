package utils

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer inserts a random delay in [min, max] between operations so the
// target site sees human-paced traffic.
type Pacer struct {
	min, max time.Duration
	rnd      func(n int64) int64
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer with the given bounds. Inverted bounds are swapped.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		min, max = max, min
	}
	return &Pacer{min: min, max: max, rnd: rand.Int64N, sleep: SleepContext}
}

// NoDelay returns a Pacer that never waits.
func NoDelay() *Pacer {
	return NewPacer(0, 0)
}

// Next picks the next delay.
func (p *Pacer) Next() time.Duration {
	span := int64(p.max - p.min)
	if span <= 0 {
		return p.min
	}
	return p.min + time.Duration(p.rnd(span+1))
}

// Wait blocks for a random delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
