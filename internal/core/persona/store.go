package persona

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kliewerdaniel/steinbot/internal/config"
)

// Store owns the persona record. Update is an atomic read-modify-write.
type Store interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, c Config) error
	Update(ctx context.Context, fn func(*Config) error) (Config, error)
	// Reset replaces the record with the domain defaults.
	Reset(ctx context.Context) (Config, error)
}

// FileStore keeps the persona as indented JSON at Path. A missing or
// malformed file is replaced by the domain defaults on load.
type FileStore struct {
	Path   string
	Domain string

	mu sync.Mutex
}

func NewFileStore(path, domain string) (*FileStore, error) {
	if _, err := Default(domain); err != nil {
		return nil, err
	}
	return &FileStore{Path: path, Domain: domain}, nil
}

func (s *FileStore) Load(ctx context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Save(ctx context.Context, c Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c)
}

func (s *FileStore) Update(ctx context.Context, fn func(*Config) error) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load()
	if err != nil {
		return Config{}, err
	}
	if err := fn(&c); err != nil {
		return Config{}, err
	}
	if err := s.write(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *FileStore) Reset(ctx context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regenerate()
}

func (s *FileStore) load() (Config, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("persona file missing, writing defaults", "path", s.Path)
		return s.regenerate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read persona: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		log.Warn("persona file unreadable, writing defaults", "path", s.Path, "err", err)
		return s.regenerate()
	}
	return c, nil
}

func (s *FileStore) regenerate() (Config, error) {
	c, err := Default(s.Domain)
	if err != nil {
		return Config{}, err
	}
	if err := s.write(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// write replaces the file through a rename so readers never see a partial record.
func (s *FileStore) write(c Config) error {
	data, err := Encode(c)
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create persona directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".persona-*.json")
	if err != nil {
		return fmt.Errorf("failed to write persona: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write persona: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write persona: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace persona: %w", err)
	}
	return nil
}

// Open builds the store selected by cfg.Persona.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	domain := cfg.Retrieval.Domain
	switch cfg.Persona.Backend {
	case "", "file":
		s, err := NewFileStore(cfg.Persona.Path, domain)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisStoreFromURL(ctx, cfg.Redis.URL, cfg.Persona.RedisKey, domain)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown persona backend %q", cfg.Persona.Backend)
}
