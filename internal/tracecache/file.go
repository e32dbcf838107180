package tracecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"txrecon/internal/domain"
)

// hashPrefixLen is the number of tx hash characters used in file names.
const hashPrefixLen = 10

// FileCache stores one JSON file per (network, txHash prefix) in a directory.
// Writes are not locked across processes.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file cache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir, now: time.Now}
}

// WithClock sets the clock used for FetchedAt.
func (c *FileCache) WithClock(now func() time.Time) *FileCache {
	c.now = now
	return c
}

// Compile-time interface check.
var _ Cache = (*FileCache)(nil)

// Path returns the cache file path for (network, txHash).
func (c *FileCache) Path(network, txHash string) string {
	prefix := strings.ToLower(txHash)
	if len(prefix) > hashPrefixLen {
		prefix = prefix[:hashPrefixLen]
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s.json", strings.ToLower(network), prefix))
}

// Load reads the cache file for (network, txHash).
func (c *FileCache) Load(_ context.Context, network, txHash string) (*Entry, error) {
	data, err := os.ReadFile(c.Path(network, txHash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return decodeEntry(data, network, txHash)
}

// Save writes trace to the cache file via a temp file and rename.
func (c *FileCache) Save(_ context.Context, network, txHash string, trace *domain.TraceResult) error {
	data, err := encodeEntry(&Entry{
		Network:   network,
		TxHash:    txHash,
		FetchedAt: c.now(),
		Trace:     trace,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := c.Path(network, txHash)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
