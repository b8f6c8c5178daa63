package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	selfHolder  = "self"
	otherHolder = "other"
)

// MockDistributedLock keeps locks in a map with expiry times. SetLockHeld
// simulates a pipeline run owned by another worker.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]heldLock
	acquired []string
	extended int

	PingFn func() error
}

type heldLock struct {
	holder  string
	expires time.Time
}

func (h heldLock) live(now time.Time) bool {
	return now.Before(h.expires)
}

func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]heldLock)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if h, ok := m.held[name]; ok && h.live(now) {
		return false, nil
	}
	m.held[name] = heldLock{holder: selfHolder, expires: now.Add(ttl)}
	m.acquired = append(m.acquired, name)
	return true, nil
}

// Release only drops locks taken through Acquire.
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.held[name]; ok && h.holder == selfHolder {
		delete(m.held, name)
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	h, ok := m.held[name]
	if !ok || h.holder != selfHolder || !h.live(now) {
		return fmt.Errorf("lock %s not held", name)
	}
	h.expires = now.Add(ttl)
	m.held[name] = h
	m.extended++
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Acquired lists successful acquisitions in order.
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

func (m *MockDistributedLock) ExtendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extended
}

func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.held[name]
	return ok && h.live(time.Now())
}

// SetLockHeld marks name as held by another worker for ttl.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = heldLock{holder: otherHolder, expires: time.Now().Add(ttl)}
}
