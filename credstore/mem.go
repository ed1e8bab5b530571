/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package credstore

import (
	"context"
	"fmt"
	"sync"
)

// Mem is an in-memory Store for tests and local development.
type Mem struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{creds: map[string]string{}}
}

func (m *Mem) Get(_ context.Context, scope, key string) (string, error) {
	if err := validateName("scope", scope); err != nil {
		return "", err
	}
	if err := validateName("key", key); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.creds[scope+"/"+key]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", scope, key, ErrNotFound)
	}
	return v, nil
}

func (m *Mem) Put(_ context.Context, scope, key, value string) error {
	if err := validateName("scope", scope); err != nil {
		return err
	}
	if err := validateName("key", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[scope+"/"+key] = value
	return nil
}
