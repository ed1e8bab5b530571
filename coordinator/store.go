/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrAlreadyActive is returned by Create when the key already has an
	// active context.
	ErrAlreadyActive = errors.New("context already active for entity")

	// ErrNotFound is returned when no active context has the given id.
	ErrNotFound = errors.New("context not found")
)

// Store holds active execution contexts. Create is an atomic check-and-set
// on the context's Key: the webhook path and the timeout sweep may race, and
// the store is where that race is settled.
type Store interface {
	Create(ctx context.Context, ec Context) error
	Lookup(ctx context.Context, id string) (Context, error)
	Update(ctx context.Context, ec Context) error
	Evict(ctx context.Context, id string) error
	List(ctx context.Context) ([]Context, error)

	// WasEvicted reports whether id belonged to a recently evicted context.
	// It distinguishes late callbacks from garbage ids in logs.
	WasEvicted(ctx context.Context, id string) bool
}

const evictedMemory = 1024

// MemoryStore is the in-process Store. Contexts are stored and returned by
// value so callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]Context
	byKey   map[Key]string
	evicted *lru.Cache[string, struct{}]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() (*MemoryStore, error) {
	evicted, err := lru.New[string, struct{}](evictedMemory)
	if err != nil {
		return nil, fmt.Errorf("creating eviction memory: %w", err)
	}
	return &MemoryStore{
		byID:    map[string]Context{},
		byKey:   map[Key]string{},
		evicted: evicted,
	}, nil
}

func (s *MemoryStore) Create(_ context.Context, ec Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byKey[ec.Key]; ok {
		return fmt.Errorf("%s held by %s: %w", ec.Key, existing, ErrAlreadyActive)
	}
	if _, ok := s.byID[ec.ID]; ok {
		return fmt.Errorf("duplicate context id %s", ec.ID)
	}
	s.byID[ec.ID] = ec
	s.byKey[ec.Key] = ec.ID
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ec, ok := s.byID[id]
	if !ok {
		return Context{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return ec, nil
}

func (s *MemoryStore) Update(_ context.Context, ec Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ec.ID]; !ok {
		return fmt.Errorf("%s: %w", ec.ID, ErrNotFound)
	}
	s.byID[ec.ID] = ec
	return nil
}

func (s *MemoryStore) Evict(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.byID, id)
	delete(s.byKey, ec.Key)
	s.evicted.Add(id, struct{}{})
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Context, 0, len(s.byID))
	for _, ec := range s.byID {
		out = append(out, ec)
	}
	return out, nil
}

func (s *MemoryStore) WasEvicted(_ context.Context, id string) bool {
	return s.evicted.Contains(id)
}
