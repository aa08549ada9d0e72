// Package store persists session continuity keys, the bearer credential and
// fetched reports.
package store

import (
	"context"
	"sort"
	"sync"
)

// Keys held in the session namespace for one interview.
const (
	KeySessionID       = "sessionId"
	KeyCurrentQuestion = "currentQuestion"
	KeyProgress        = "progress"
	KeyTotal           = "total"
)

// Namespaces used by the client.
const (
	NamespaceSession = "session"
	NamespaceAuth    = "auth"
)

// KeyToken is the bearer credential key in the auth namespace.
const KeyToken = "token"

// KV is a string key-value scope.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Memory is an in-process KV.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

var (
	_ KV = (*Memory)(nil)
	_ KV = (*Scope)(nil)
)

// NewMemory returns a KV seeded with values.
func NewMemory(values map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tokens adapts an auth-namespace KV to a credential source.
type Tokens struct {
	KV       KV
	Override string
}

// Token returns the override when set, otherwise the stored credential.
func (t Tokens) Token(ctx context.Context) (string, error) {
	if t.Override != "" {
		return t.Override, nil
	}
	if t.KV == nil {
		return "", nil
	}
	v, _, err := t.KV.Get(ctx, KeyToken)
	return v, err
}

// Invalidate removes the stored credential.
func (t Tokens) Invalidate(ctx context.Context) error {
	if t.KV == nil {
		return nil
	}
	return t.KV.Delete(ctx, KeyToken)
}
