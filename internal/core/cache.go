package core

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vburojevic/xcpipe/internal/util"
)

const (
	BundleSuffix = ".xcresult"
	StderrSuffix = ".stderr"
	// DefaultIDPrefix names bundles created by build and test runs.
	DefaultIDPrefix = "xcresult"
)

var ErrSourceNotFound = errors.New("source bundle not found")

// BundleInfo describes one cached result bundle.
type BundleInfo struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Created       time.Time `json:"created"`
	SizeMB        float64   `json:"size_mb"`
	FormatVersion string    `json:"format_version,omitempty"`
}

// XCResultCache stores result bundles as <Dir>/<id>.xcresult with an
// optional <Dir>/<id>.stderr sidecar holding the captured build stderr.
type XCResultCache struct {
	Dir string

	now func() time.Time
}

func DefaultXCResultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ios-simulator-skill", "xcresults")
}

// NewXCResultCache creates dir if needed. An empty dir means the default.
func NewXCResultCache(dir string) (*XCResultCache, error) {
	if dir == "" {
		dir = DefaultXCResultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &XCResultCache{Dir: dir, now: time.Now}, nil
}

func (c *XCResultCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// GenerateID returns prefix-YYYYMMDD-HHMMSS. Two calls within the same second
// return the same id; use NewID when the id must not clash with a stored one.
func (c *XCResultCache) GenerateID(prefix string) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return prefix + "-" + c.clock().Format("20060102-150405")
}

// NewID is GenerateID plus a -N suffix when a bundle or sidecar with that id
// is already on disk. Concurrent processes can still race between NewID and
// the bundle being written.
func (c *XCResultCache) NewID(prefix string) string {
	base := c.GenerateID(prefix)
	id := base
	for n := 2; c.Exists(id) || util.Exists(c.stderrPath(id)); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func trimBundleSuffix(id string) string {
	return strings.TrimSuffix(id, BundleSuffix)
}

// GetPath accepts ids with or without the .xcresult suffix.
func (c *XCResultCache) GetPath(id string) string {
	return filepath.Join(c.Dir, trimBundleSuffix(id)+BundleSuffix)
}

func (c *XCResultCache) stderrPath(id string) string {
	return filepath.Join(c.Dir, trimBundleSuffix(id)+StderrSuffix)
}

func (c *XCResultCache) Exists(id string) bool {
	return util.Exists(c.GetPath(id))
}

// Save copies the bundle at src into the cache, replacing any bundle with the
// same id. An empty id generates one.
func (c *XCResultCache) Save(src, id string) (string, error) {
	if !util.Exists(src) {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, src)
	}
	if id == "" {
		id = c.GenerateID(DefaultIDPrefix)
	}
	id = trimBundleSuffix(id)
	if err := util.CopyDir(src, c.GetPath(id)); err != nil {
		return "", fmt.Errorf("copy bundle to cache: %w", err)
	}
	return id, nil
}

// List returns bundles newest first by modification time. limit <= 0 lists
// everything. A missing cache directory lists nothing.
func (c *XCResultCache) List(limit int) ([]BundleInfo, error) {
	paths, err := util.ListFilesWithSuffix(c.Dir, BundleSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []BundleInfo{}, nil
		}
		return nil, err
	}

	out := make([]BundleInfo, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		info := BundleInfo{
			ID:      strings.TrimSuffix(filepath.Base(p), BundleSuffix),
			Path:    p,
			Created: st.ModTime(),
			SizeMB:  bytesToMB(util.DirSize(p)),
		}
		if meta, err := ReadResultBundleMeta(p); err == nil {
			info.FormatVersion = meta.FormatVersion
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cleanup keeps the keepRecent newest bundles and removes the rest together
// with their stderr sidecars. It returns how many bundles were removed.
func (c *XCResultCache) Cleanup(keepRecent int) (int, error) {
	if keepRecent < 0 {
		keepRecent = 0
	}
	all, err := c.List(0)
	if err != nil {
		return 0, err
	}
	if len(all) <= keepRecent {
		return 0, nil
	}

	removed := 0
	var errs []error
	for _, b := range all[keepRecent:] {
		if err := os.RemoveAll(b.Path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", b.ID, err))
			continue
		}
		if err := util.RemoveAllIfExists(c.stderrPath(b.ID)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s stderr: %w", b.ID, err))
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// SizeMB is 0 for unknown ids.
func (c *XCResultCache) SizeMB(id string) float64 {
	p := c.GetPath(id)
	if !util.Exists(p) {
		return 0
	}
	return bytesToMB(util.DirSize(p))
}

// SaveStderr writes the sidecar. Empty text writes nothing.
func (c *XCResultCache) SaveStderr(id, text string) error {
	if text == "" {
		return nil
	}
	if err := os.WriteFile(c.stderrPath(id), []byte(text), 0o644); err != nil {
		return fmt.Errorf("save stderr: %w", err)
	}
	return nil
}

// Stderr returns "" when no sidecar exists.
func (c *XCResultCache) Stderr(id string) string {
	b, err := os.ReadFile(c.stderrPath(id))
	if err != nil {
		return ""
	}
	return string(b)
}

func bytesToMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
