package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// Cache is the hybrid schema store: an expiring in-memory tier in front
// of JSON files at <dir>/<catalog>/<schema>.<table>.json. The file tier
// survives restarts; a corrupted or expired file is simply a miss.
type Cache struct {
	dir    string
	ttl    time.Duration
	memory *expirable.LRU[string, *TableSchema]
	now    func() time.Time
}

// NewCache returns a cache rooted at dir holding up to maxTables entries
// in memory for ttl.
func NewCache(dir string, maxTables int, ttl time.Duration) *Cache {
	if maxTables < 1 {
		maxTables = 1
	}
	return &Cache{
		dir:    dir,
		ttl:    ttl,
		memory: expirable.NewLRU[string, *TableSchema](maxTables, nil, ttl),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Test use only.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func cacheKey(catalog, schemaName, table string) string {
	return catalog + "." + schemaName + "." + table
}

func (c *Cache) filePath(catalog, schemaName, table string) string {
	return filepath.Join(c.dir, catalog, fmt.Sprintf("%s.%s.json", schemaName, table))
}

// Get returns the cached schema for a table, consulting memory first and
// the file tier second. Expired entries are misses.
func (c *Cache) Get(catalog, schemaName, table string) (*TableSchema, bool) {
	key := cacheKey(catalog, schemaName, table)
	if s, ok := c.memory.Get(key); ok {
		if c.fresh(s) {
			return s, true
		}
		c.memory.Remove(key)
	}

	s, ok := c.readFile(catalog, schemaName, table)
	if !ok || !c.fresh(s) {
		return nil, false
	}
	c.memory.Add(key, s)
	return s, true
}

func (c *Cache) fresh(s *TableSchema) bool {
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(s.FetchedAt) < c.ttl
}

func (c *Cache) readFile(catalog, schemaName, table string) (*TableSchema, bool) {
	raw, err := os.ReadFile(c.filePath(catalog, schemaName, table))
	if err != nil {
		return nil, false
	}
	var s TableSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupted cache file is a miss; the next Put overwrites it.
		logrus.WithField("table", cacheKey(catalog, schemaName, table)).
			WithError(err).Warn("discarding corrupted schema cache file")
		return nil, false
	}
	return &s, true
}

// Put stores a schema in both tiers. The file is written to a temp name
// and renamed so readers never observe a partial write.
func (c *Cache) Put(s *TableSchema) error {
	c.memory.Add(cacheKey(s.Catalog, s.Schema, s.Table), s)

	path := c.filePath(s.Catalog, s.Schema, s.Table)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating schema cache dir: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".schema-*")
	if err != nil {
		return fmt.Errorf("creating schema cache temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing schema cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing schema cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publishing schema cache entry: %w", err)
	}
	return nil
}

// Invalidate drops a table from both tiers.
func (c *Cache) Invalidate(catalog, schemaName, table string) {
	c.memory.Remove(cacheKey(catalog, schemaName, table))
	_ = os.Remove(c.filePath(catalog, schemaName, table))
}
