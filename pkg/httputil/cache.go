package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] for an entry older than the TTL.
// The stale entry stays on disk until the next Set overwrites it.
var ErrExpired = errors.New("cache entry expired")

// Cache stores fetched responses as JSON files named by the SHA-256 of
// their key. Entry age is the file's modification time; a TTL of zero
// never expires.
//
// A Cache is not safe for concurrent use, but separate processes may share
// a directory.
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache creates a cache in dir, or in ~/.cache/shotframe/http when dir
// is empty.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "shotframe", "http")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the response stored under key.
// A missing entry is (nil, nil); a stale one is (nil, ErrExpired).
func (c *Cache) Get(key string) (*Response, error) {
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return nil, ErrExpired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Set stores resp under key, refreshing its age.
func (c *Cache) Set(key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(c.prefix+key), data, 0o644)
}

// Namespace returns a view of c whose keys are prefixed with prefix.
// Namespaces nest.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{dir: c.dir, ttl: c.ttl, prefix: c.prefix + prefix}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
