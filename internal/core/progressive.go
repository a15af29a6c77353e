package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vburojevic/xcpipe/internal/util"
)

const DefaultProgressiveMaxAge = time.Hour

// CacheEntry is the on-disk form of a progressive cache record.
type CacheEntry struct {
	CacheID   string          `json:"cache_id"`
	CacheType string          `json:"cache_type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// CacheEntryInfo is the listing view of a live entry.
type CacheEntryInfo struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	AgeSeconds int       `json:"age_seconds"`
}

// ProgressiveCache keeps large outputs as <Dir>/<id>.json so a command can
// print a summary plus an id and hand out the full payload later. Entries
// older than MaxAge are removed lazily whenever they are touched.
type ProgressiveCache struct {
	Dir    string
	MaxAge time.Duration

	now func() time.Time
}

func DefaultProgressiveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ios-simulator-skill", "cache")
}

func NewProgressiveCache(dir string, maxAge time.Duration) (*ProgressiveCache, error) {
	if dir == "" {
		dir = DefaultProgressiveDir()
	}
	if maxAge <= 0 {
		maxAge = DefaultProgressiveMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &ProgressiveCache{Dir: dir, MaxAge: maxAge, now: time.Now}, nil
}

func (p *ProgressiveCache) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *ProgressiveCache) entryPath(id string) string {
	return filepath.Join(p.Dir, id+".json")
}

// Save stores data and returns its id, e.g. "simulator-list" -> "simulator-20251028-143052".
func (p *ProgressiveCache) Save(data any, cacheType string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode cache data: %w", err)
	}
	now := p.clock()
	prefix, _, _ := strings.Cut(cacheType, "-")
	base := prefix + "-" + now.Format("20060102-150405")
	id := base
	for n := 2; util.Exists(p.entryPath(id)); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}

	entry := CacheEntry{CacheID: id, CacheType: cacheType, CreatedAt: now, Data: raw}
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.WriteFile(p.entryPath(id), b, 0o644); err != nil {
		return "", fmt.Errorf("write cache entry: %w", err)
	}
	return id, nil
}

// Get returns the stored payload. Missing, unreadable and expired entries
// report false; expired ones are deleted.
func (p *ProgressiveCache) Get(id string) (json.RawMessage, bool) {
	path := p.entryPath(id)
	if !util.Exists(path) {
		return nil, false
	}
	entry, ok := p.read(path)
	if !ok || p.expired(entry, p.MaxAge) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// ListEntries lists live entries, newest id first. An empty cacheType lists
// every type.
func (p *ProgressiveCache) ListEntries(cacheType string) []CacheEntryInfo {
	files := p.files()
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	now := p.clock()
	out := []CacheEntryInfo{}
	for _, f := range files {
		entry, ok := p.read(f)
		if !ok || p.expired(entry, p.MaxAge) {
			_ = os.Remove(f)
			continue
		}
		if cacheType != "" && entry.CacheType != cacheType {
			continue
		}
		out = append(out, CacheEntryInfo{
			ID:         entry.CacheID,
			Type:       entry.CacheType,
			CreatedAt:  entry.CreatedAt,
			AgeSeconds: int(now.Sub(entry.CreatedAt).Seconds()),
		})
	}
	return out
}

// Cleanup removes entries older than maxAge (MaxAge when zero) and reports
// how many were deleted. Unreadable entries count as expired.
func (p *ProgressiveCache) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = p.MaxAge
	}
	deleted := 0
	for _, f := range p.files() {
		entry, ok := p.read(f)
		if ok && !p.expired(entry, maxAge) {
			continue
		}
		if os.Remove(f) == nil {
			deleted++
		}
	}
	return deleted
}

// Clear removes every entry of cacheType, or all entries when it is empty.
func (p *ProgressiveCache) Clear(cacheType string) int {
	deleted := 0
	for _, f := range p.files() {
		if cacheType != "" {
			entry, ok := p.read(f)
			if !ok || entry.CacheType != cacheType {
				continue
			}
		}
		if os.Remove(f) == nil {
			deleted++
		}
	}
	return deleted
}

func (p *ProgressiveCache) files() []string {
	matches, err := filepath.Glob(filepath.Join(p.Dir, "*.json"))
	if err != nil {
		return nil
	}
	return matches
}

func (p *ProgressiveCache) read(path string) (CacheEntry, bool) {
	var entry CacheEntry
	if err := util.ReadJSONFile(path, &entry); err != nil || entry.CreatedAt.IsZero() {
		return CacheEntry{}, false
	}
	return entry, true
}

func (p *ProgressiveCache) expired(entry CacheEntry, maxAge time.Duration) bool {
	return p.clock().Sub(entry.CreatedAt) > maxAge
}

