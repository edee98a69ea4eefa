// Package memstore provides an in-memory CorrelationStore for tests and
// examples.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"

	"github.com/relaykit/goldenpath"
)

type entry struct {
	target    string
	meta      map[string]string
	updatedAt time.Time
}

type Store struct {
	clock clock.PassiveClock

	mu      sync.Mutex
	entries map[string]entry
}

type Option func(s *Store)

func WithClock(c clock.PassiveClock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:   clock.RealClock{},
		entries: make(map[string]entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", errors.Wrap(goldenpath.ErrCorrelationNotFound, "", j.KV("key", key))
	}

	return e.target, nil
}

func (s *Store) Put(ctx context.Context, key string, target string, meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(map[string]string, len(meta))
	for k, v := range meta {
		cp[k] = v
	}

	s.entries[key] = entry{
		target:    target,
		meta:      cp,
		updatedAt: s.clock.Now(),
	}

	return nil
}

// Meta returns a copy of the metadata stored for key and whether the key
// exists. Intended for test assertions.
func (s *Store) Meta(key string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	cp := make(map[string]string, len(e.meta))
	for k, v := range e.meta {
		cp[k] = v
	}

	return cp, true
}

var _ goldenpath.CorrelationStore = (*Store)(nil)
