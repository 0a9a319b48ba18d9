package missingcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"auditexport/internal/logging"
)

// FileName is the cache file written inside the output directory.
const FileName = "404.json"

// Cache provides thread-safe access to the set of known-missing record IDs.
type Cache struct {
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
	order  []int64
	set    map[int64]struct{}
}

// Open loads the cache at path. A missing file starts empty; a corrupt file is
// logged and treated as empty so the next Add rewrites it.
func Open(path string, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "missingcache")

	c := &Cache{
		path:   path,
		logger: logger,
		set:    make(map[int64]struct{}),
	}

	if err := c.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load missing id cache", "missingcache_load_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "fix or delete the file; cache will start empty"),
			logging.String(logging.FieldImpact, "previously missing IDs will be requested again"))
	}

	return c
}

// OpenDir loads the cache from dir/404.json.
func OpenDir(dir string, logger *slog.Logger) *Cache {
	return Open(filepath.Join(dir, FileName), logger)
}

// Path returns the backing file location.
func (c *Cache) Path() string {
	return c.path
}

// Contains reports whether id is known to be missing.
func (c *Cache) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.set[id]
	return ok
}

// Add records id as missing and persists the full list. Adding an ID that is
// already present is a no-op.
func (c *Cache) Add(id int64) error {
	if id <= 0 {
		return fmt.Errorf("invalid record id %d", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.set[id]; ok {
		return nil
	}
	c.set[id] = struct{}{}
	c.order = append(c.order, id)

	if err := c.save(); err != nil {
		delete(c.set, id)
		c.order = c.order[:len(c.order)-1]
		return fmt.Errorf("persist missing id cache: %w", err)
	}

	c.logger.Debug("recorded missing id",
		logging.Int64(logging.FieldRecordID, id),
		logging.Int("entry_count", len(c.order)))
	return nil
}

// List returns the missing IDs in insertion order.
func (c *Cache) List() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, len(c.order))
	copy(out, c.order)
	return out
}

// Count returns the number of known-missing IDs.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := c.set[id]; ok {
			continue
		}
		c.set[id] = struct{}{}
		c.order = append(c.order, id)
	}

	c.logger.Debug("loaded missing id cache",
		logging.Int("entry_count", len(c.order)),
		logging.String("path", c.path))
	return nil
}

// save writes the cache to disk atomically. Caller holds mu.
func (c *Cache) save() error {
	ids := c.order
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
