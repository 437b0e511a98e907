// Package store defines the key-value port that holds everything a client
// page keeps between reloads: onboarding flags, the chat transcript and the
// countdown end time.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Keys written under each profile namespace.
const (
	KeyOnboarded     = "hasCompletedOnboarding"
	KeyUserName      = "userName"
	KeyScore         = "phq9Score"
	KeyMessages      = "chatMessages"
	KeyTimerEndTime  = "chatTimerEndTime"
	namespaceDivider = ":"
)

// KV is a last-write-wins string store. Get reports ok=false for a missing
// key; absence is never an error. Implementations must be safe for
// concurrent use.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Memory implements KV with a map, suitable for tests and single-process
// deployments.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type namespaced struct {
	kv     KV
	prefix string
}

// Namespace scopes every key of kv under prefix, so several profiles can
// share one backend.
func Namespace(kv KV, prefix string) KV {
	prefix = strings.TrimSuffix(prefix, namespaceDivider)
	return &namespaced{kv: kv, prefix: prefix + namespaceDivider}
}

// ForProfile returns the namespace for one client profile.
func ForProfile(kv KV, profileID string) KV {
	return Namespace(kv, "profile"+namespaceDivider+profileID)
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.kv.Remove(ctx, n.prefix+key)
}
