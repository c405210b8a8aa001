// Package cache stores compressed feed-cache blobs keyed by a stable
// hash of the source URL. Two backends share one interface: gzip files
// on local disk, and an S3-compatible object store for shared runners.
// Cache failures are never fatal; callers treat them as misses.
package cache

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no blob exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store is the blob interface the feed fetcher consumes.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Delete(key string) error
}

// Config contains local cache configuration
type Config struct {
	BasePath string // Base directory for cache blobs
}

// DefaultConfig returns default local cache configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./cache",
	}
}

// Local stores gzip-compressed blobs as files under a base directory.
type Local struct {
	config Config
}

// NewLocal creates a local cache store, creating the base directory if needed
func NewLocal(config Config) (*Local, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Local{config: config}, nil
}

// Get reads and decompresses the blob for a key. A missing file is
// ErrNotFound; an unreadable or corrupt blob is a plain error the
// caller downgrades to a miss.
func (l *Local) Get(key string) ([]byte, error) {
	compressed, err := os.ReadFile(l.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache blob: %w", err)
	}
	data, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("corrupt cache blob %s: %w", key, err)
	}
	return data, nil
}

// Put compresses and writes the blob for a key, replacing any previous blob
func (l *Local) Put(key string, data []byte) error {
	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress cache blob: %w", err)
	}
	if err := os.WriteFile(l.blobPath(key), compressed, 0644); err != nil {
		return fmt.Errorf("failed to write cache blob: %w", err)
	}
	return nil
}

// Delete removes the blob for a key; a missing blob is not an error
func (l *Local) Delete(key string) error {
	if err := os.Remove(l.blobPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache blob: %w", err)
	}
	return nil
}

func (l *Local) blobPath(key string) string {
	return filepath.Join(l.config.BasePath, key+".gz")
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
