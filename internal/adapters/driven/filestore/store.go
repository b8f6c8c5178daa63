// Package filestore keeps episode artifacts on the local filesystem:
//
//	<root>/episodes/<id>/source.<ext>
//	<root>/episodes/<id>/manifest.json
//	<root>/episodes/<id>/seg_<n>.mp3
//	<root>/episodes/<id>/question_<hex>.mp3
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.EpisodeStore = (*Store)(nil)

const (
	episodesDir    = "episodes"
	manifestName   = "manifest.json"
	sourcePrefix   = "source"
	DefaultBaseURL = "/static/episodes"
)

// Config holds filestore configuration
type Config struct {
	// Root is the storage directory; episodes live under Root/episodes
	Root string

	// BaseURL prefixes public audio URLs (default /static/episodes)
	BaseURL string

	Logger *slog.Logger
}

// Store implements EpisodeStore on disk
type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// New creates the episodes directory if needed
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("%w: storage root is empty", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dir := filepath.Join(cfg.Root, episodesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
	}, nil
}

// EpisodesDir returns the directory served under the base URL
func (s *Store) EpisodesDir() string {
	return s.dir
}

// SaveSource stores the upload as source.<ext>
func (s *Store) SaveSource(ctx context.Context, episodeID, filename string, content []byte) error {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("%w: file name %q has no extension", domain.ErrInvalidInput, filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create episode dir: %w", err)
	}
	return writeAtomic(dir, sourcePrefix+ext, content)
}

// LoadSource returns the stored source and its stored file name
func (s *Store) LoadSource(ctx context.Context, episodeID string) (string, []byte, error) {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return "", nil, domain.ErrNotFound
	}

	matches, err := filepath.Glob(filepath.Join(dir, sourcePrefix+".*"))
	if err != nil {
		return "", nil, fmt.Errorf("find source: %w", err)
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".tmp") {
			continue
		}
		content, err := os.ReadFile(m)
		if err != nil {
			return "", nil, fmt.Errorf("read source: %w", err)
		}
		return filepath.Base(m), content, nil
	}
	return "", nil, domain.ErrNotFound
}

// WriteAudio stores a clip and returns its public URL
func (s *Store) WriteAudio(ctx context.Context, episodeID, name string, audio []byte) (string, error) {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid audio name %q", domain.ErrInvalidInput, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create episode dir: %w", err)
	}
	if err := writeAtomic(dir, name, audio); err != nil {
		return "", err
	}
	return s.baseURL + "/" + episodeID + "/" + name, nil
}

// WriteManifest persists the manifest segments as an indented JSON array
func (s *Store) WriteManifest(ctx context.Context, manifest *domain.Manifest) error {
	if manifest == nil {
		return fmt.Errorf("%w: nil manifest", domain.ErrInvalidInput)
	}
	dir, err := s.episodeDir(manifest.EpisodeID)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create episode dir: %w", err)
	}
	if err := writeAtomic(dir, manifestName, payload); err != nil {
		return err
	}
	// The file's mtime carries CreatedAt
	if !manifest.CreatedAt.IsZero() {
		if err := os.Chtimes(filepath.Join(dir, manifestName), manifest.CreatedAt, manifest.CreatedAt); err != nil {
			s.logger.Warn("failed to stamp manifest time", "episode_id", manifest.EpisodeID, "error", err)
		}
	}
	s.logger.Debug("manifest written", "episode_id", manifest.EpisodeID, "segments", len(manifest.Segments))
	return nil
}

// ReadManifest loads manifest.json
func (s *Store) ReadManifest(ctx context.Context, episodeID string) (*domain.Manifest, error) {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	path := filepath.Join(dir, manifestName)
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := domain.Manifest{EpisodeID: episodeID}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		m.CreatedAt = info.ModTime()
	}
	return &m, nil
}

// ManifestExists reports whether manifest.json is present
func (s *Store) ManifestExists(ctx context.Context, episodeID string) (bool, error) {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return false, nil
	}
	return fileExists(filepath.Join(dir, manifestName))
}

// Exists reports whether the episode directory is present
func (s *Store) Exists(ctx context.Context, episodeID string) (bool, error) {
	dir, err := s.episodeDir(episodeID)
	if err != nil {
		return false, nil
	}
	return fileExists(dir)
}

// episodeDir rejects ids that could escape the storage root
func (s *Store) episodeDir(episodeID string) (string, error) {
	if episodeID == "" || episodeID == "." || episodeID == ".." ||
		strings.ContainsAny(episodeID, `/\`) || episodeID != filepath.Base(episodeID) {
		return "", fmt.Errorf("%w: invalid episode id %q", domain.ErrInvalidInput, episodeID)
	}
	return filepath.Join(s.dir, episodeID), nil
}

func fileExists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// writeAtomic writes to a temp file in dir and renames it over name
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
