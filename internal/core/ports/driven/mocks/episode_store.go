package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

type mockSource struct {
	filename string
	content  []byte
}

// MockEpisodeStore is an in-memory EpisodeStore for testing
type MockEpisodeStore struct {
	mu        sync.RWMutex
	sources   map[string]mockSource
	audio     map[string][]byte
	manifests map[string]*domain.Manifest

	WriteAudioFn    func(episodeID, name string) error
	WriteManifestFn func(manifest *domain.Manifest) error
}

// NewMockEpisodeStore creates a new MockEpisodeStore
func NewMockEpisodeStore() *MockEpisodeStore {
	return &MockEpisodeStore{
		sources:   make(map[string]mockSource),
		audio:     make(map[string][]byte),
		manifests: make(map[string]*domain.Manifest),
	}
}

func (m *MockEpisodeStore) SaveSource(ctx context.Context, episodeID, filename string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[episodeID] = mockSource{filename: filename, content: content}
	return nil
}

func (m *MockEpisodeStore) LoadSource(ctx context.Context, episodeID string) (string, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[episodeID]
	if !ok {
		return "", nil, domain.ErrNotFound
	}
	return src.filename, src.content, nil
}

func (m *MockEpisodeStore) WriteAudio(ctx context.Context, episodeID, name string, audio []byte) (string, error) {
	if m.WriteAudioFn != nil {
		if err := m.WriteAudioFn(episodeID, name); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio[episodeID+"/"+name] = audio
	return fmt.Sprintf("/static/episodes/%s/%s", episodeID, name), nil
}

func (m *MockEpisodeStore) WriteManifest(ctx context.Context, manifest *domain.Manifest) error {
	if m.WriteManifestFn != nil {
		if err := m.WriteManifestFn(manifest); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *manifest
	cp.Segments = append([]domain.AudioResult(nil), manifest.Segments...)
	m.manifests[manifest.EpisodeID] = &cp
	return nil
}

func (m *MockEpisodeStore) ReadManifest(ctx context.Context, episodeID string) (*domain.Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	manifest, ok := m.manifests[episodeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return manifest, nil
}

func (m *MockEpisodeStore) ManifestExists(ctx context.Context, episodeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.manifests[episodeID]
	return ok, nil
}

func (m *MockEpisodeStore) Exists(ctx context.Context, episodeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, hasSource := m.sources[episodeID]
	_, hasManifest := m.manifests[episodeID]
	return hasSource || hasManifest, nil
}

// Audio returns a stored clip (for test assertions)
func (m *MockEpisodeStore) Audio(episodeID, name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.audio[episodeID+"/"+name]
	return b, ok
}

// SetManifest seeds a manifest (for test setup)
func (m *MockEpisodeStore) SetManifest(manifest *domain.Manifest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifest.EpisodeID] = manifest
}
