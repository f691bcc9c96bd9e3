package cooldown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/internal/model"
	pkgerrors "CheckinKiosk/pkg/errors"
)

// Entry is the last accepted scan of one code.
type Entry struct {
	LastScan   time.Time
	LastAction model.Action
}

// Cache debounces repeat scans and seeds the toggle decision before the
// event store is consulted. Keys are raw scanned codes, not student
// numbers: the QR payload may carry extra characters.
type Cache struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	entries map[string]Entry
}

// diskEntry matches the historical cache file layout.
type diskEntry struct {
	LastScan string `json:"last_scan"`
	LastTipo string `json:"last_tipo"`
}

func New(path string, log *zap.Logger) *Cache {
	return &Cache{
		path:    path,
		log:     log,
		entries: make(map[string]Entry),
	}
}

// Load reads the cache file. A missing file is a clean first run;
// unreadable entries are skipped, never fatal.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache %s: %w", c.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.log.Error("Cache file unreadable, starting empty",
			zap.String("path", c.path),
			zap.Error(err),
		)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for code, msg := range raw {
		var de diskEntry
		if err := json.Unmarshal(msg, &de); err != nil {
			c.log.Error(pkgerrors.CacheCorrupt.Message,
				zap.String("code", code),
				zap.Error(err),
			)
			continue
		}
		ts, err := time.ParseInLocation(model.TimeLayout, de.LastScan, time.Local)
		if err != nil {
			c.log.Error(pkgerrors.CacheCorrupt.Message,
				zap.String("code", code),
				zap.String("last_scan", de.LastScan),
			)
			continue
		}
		action := model.Action(de.LastTipo)
		if !action.Valid() {
			c.log.Error(pkgerrors.CacheCorrupt.Message,
				zap.String("code", code),
				zap.String("last_tipo", de.LastTipo),
			)
			continue
		}
		c.entries[code] = Entry{LastScan: ts, LastAction: action}
	}
	return nil
}

// Get returns the entry for a scanned code.
func (c *Cache) Get(code string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[code]
	return e, ok
}

// Put records an accepted scan and persists the whole map.
func (c *Cache) Put(code string, ts time.Time, action model.Action) {
	c.mu.Lock()
	c.entries[code] = Entry{LastScan: ts, LastAction: action}
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		c.log.Error("Failed to persist scan cache", zap.Error(err))
	}
}

// SetAction rewrites the cached action for a code, keeping its
// timestamp. Used by startup reconciliation to close stale entries.
func (c *Cache) SetAction(code string, action model.Action) {
	c.mu.Lock()
	if e, ok := c.entries[code]; ok {
		e.LastAction = action
		c.entries[code] = e
	}
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		c.log.Error("Failed to persist scan cache", zap.Error(err))
	}
}

// Snapshot copies the current entries for read-only inspection.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Save writes the cache atomically: temp file in the same directory,
// then rename. A crash mid-write leaves the previous file intact.
func (c *Cache) Save() error {
	c.mu.Lock()
	disk := make(map[string]diskEntry, len(c.entries))
	for code, e := range c.entries {
		disk[code] = diskEntry{
			LastScan: e.LastScan.Format(model.TimeLayout),
			LastTipo: string(e.LastAction),
		}
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "scan_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
