package imagegen

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrNoBanner = errors.New("no banner available")

const DefaultCacheDir = "data/images"

// Cache stores generated banners as PNG files keyed by Banner.Key.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates the cache directory if needed. Banners older than maxAge
// are treated as missing so they get regenerated; zero means one week.
func NewCache(dir string, maxAge time.Duration) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("imagegen: could not create cache directory: %v", err)
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Cache{dir: dir, maxAge: maxAge}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, "banner_"+key+".png")
}

// Get returns a cached image if it exists and is not stale.
func (c *Cache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Set(key string, data []byte) error {
	return os.WriteFile(c.path(key), data, 0644)
}

// GetAny returns any cached banner whose key starts with prefix, stale or not.
func (c *Cache) GetAny(prefix string) ([]byte, bool) {
	for _, key := range c.List() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		data, err := os.ReadFile(c.path(key))
		if err == nil {
			return data, true
		}
	}
	return nil, false
}

// List returns all cached keys.
func (c *Cache) List() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "banner_") || filepath.Ext(name) != ".png" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, "banner_"), ".png"))
	}
	return keys
}

// Painter renders a banner. *Generator is the production implementation.
type Painter interface {
	Generate(ctx context.Context, b Banner) ([]byte, error)
}

// Service ties a painter to a cache. Without a painter, banners are only
// served from cache.
type Service struct {
	painter Painter
	cache   *Cache
	mu      sync.Mutex // one generation at a time
}

func NewService(painter Painter, cache *Cache) *Service {
	return &Service{painter: painter, cache: cache}
}

func (s *Service) Enabled() bool { return s != nil && s.painter != nil }

// Banner returns the cached banner, generating it when missing. When it
// cannot be generated, any banner for the same scenario is returned instead.
func (s *Service) Banner(ctx context.Context, b Banner) ([]byte, error) {
	key := b.Key()
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}
	if !s.Enabled() {
		if data, ok := s.cache.GetAny(b.Scenario.ID); ok {
			return data, nil
		}
		return nil, ErrNoBanner
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}

	data, err := s.painter.Generate(ctx, b)
	if err != nil {
		if fallback, ok := s.cache.GetAny(b.Scenario.ID); ok {
			log.Printf("imagegen: %s: %v (serving older banner)", key, err)
			return fallback, nil
		}
		return nil, err
	}
	if err := s.cache.Set(key, data); err != nil {
		log.Printf("imagegen: cache %s: %v", key, err)
	}
	return data, nil
}
